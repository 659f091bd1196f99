package services

import (
	"testing"
	"time"

	"tontine/internal/core"
)

func TestResolvePrecedence(t *testing.T) {
	withDefault := core.ContributionType{ID: 1, DefaultAmount: core.Money(5000).Ptr()}
	noDefault := core.ContributionType{ID: 2}
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	overrides := []core.AmountOverride{
		{ID: 1, MemberID: 7, TypeID: 1, PeriodID: 1, Amount: 8000, Active: true, CreatedAt: t0},
		{ID: 2, MemberID: 7, TypeID: 1, PeriodID: 2, Amount: 9000, Active: false, CreatedAt: t0},
		{ID: 3, MemberID: 7, TypeID: 2, PeriodID: 1, Amount: 1500, Active: true, CreatedAt: t0},
		// duplicates on one key: the most recent wins
		{ID: 4, MemberID: 8, TypeID: 1, PeriodID: 1, Amount: 100, Active: true, CreatedAt: t0.Add(time.Hour)},
		{ID: 5, MemberID: 8, TypeID: 1, PeriodID: 1, Amount: 200, Active: true, CreatedAt: t0},
		// same timestamp: the higher ID wins
		{ID: 6, MemberID: 9, TypeID: 1, PeriodID: 1, Amount: 300, Active: true, CreatedAt: t0},
		{ID: 7, MemberID: 9, TypeID: 1, PeriodID: 1, Amount: 400, Active: true, CreatedAt: t0},
	}
	r := NewAmountResolver(overrides)

	tests := []struct {
		name       string
		member     int64
		ctype      core.ContributionType
		period     int64
		want       core.Money
		wantSource ResolutionSource
	}{
		{"active override wins over default", 7, withDefault, 1, 8000, SourceOverride},
		{"inactive override falls back to default", 7, withDefault, 2, 5000, SourceDefault},
		{"override without default", 7, noDefault, 1, 1500, SourceOverride},
		{"other member uses default", 99, withDefault, 1, 5000, SourceDefault},
		{"nothing configured resolves to zero", 99, noDefault, 1, 0, SourceNone},
		{"most recent duplicate wins", 8, withDefault, 1, 100, SourceOverride},
		{"higher id breaks timestamp tie", 9, withDefault, 1, 400, SourceOverride},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src := r.ResolveWithSource(tt.member, tt.ctype, tt.period)
			if got != tt.want || src != tt.wantSource {
				t.Fatalf("got (%d, %s), want (%d, %s)", got, src, tt.want, tt.wantSource)
			}
			if r.Resolve(tt.member, tt.ctype, tt.period) != tt.want {
				t.Fatalf("Resolve disagrees with ResolveWithSource")
			}
		})
	}
}

func TestResolveNeverNegative(t *testing.T) {
	r := NewAmountResolver([]core.AmountOverride{{MemberID: 1, TypeID: 1, PeriodID: 1, Amount: -50, Active: true}})
	if got := r.Resolve(1, core.ContributionType{ID: 1}, 1); got != 0 {
		t.Fatalf("negative override resolved to %d", got)
	}
	if got := r.Resolve(2, core.ContributionType{ID: 1, DefaultAmount: core.Money(-1).Ptr()}, 1); got != 0 {
		t.Fatalf("negative default resolved to %d", got)
	}
}

func TestNilResolverUsesDefaults(t *testing.T) {
	var r *AmountResolver
	if got := r.Resolve(1, core.ContributionType{DefaultAmount: core.Money(10).Ptr()}, 1); got != 10 {
		t.Fatalf("got %d", got)
	}
	if r.HasOverride(1, 1, 1) {
		t.Fatal("nil resolver has no overrides")
	}
}

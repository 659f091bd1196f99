package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tontine/internal/core"
	"tontine/internal/ports"
)

func seed() core.Seed {
	return core.Seed{
		Members: []core.Member{{ID: 1, Name: "Awa", Active: true}, {ID: 2, Name: "Binta", Active: true}},
		Types:   []core.ContributionType{{ID: 10, Name: "Cotisation", DefaultAmount: core.Money(5000).Ptr(), Mandatory: true, EntryMode: core.EntryMonetary}},
		Periods: []core.FiscalPeriod{{ID: 100, Name: "2024", Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 12, 31), Status: core.PeriodActive}},
		Meetings: []core.Meeting{
			{ID: 200, Date: core.NewDate(2024, 3, 2), Status: core.MeetingInProgress},
			{ID: 201, Date: core.NewDate(2024, 2, 3), Status: core.MeetingClosed},
			{ID: 202, Date: core.NewDate(2025, 1, 4), Status: core.MeetingPlanned},
		},
		Contributions: []core.Contribution{{ID: 300, MemberID: 1, TypeID: 10, MeetingID: 201, PeriodID: 100, Amount: 5000, Status: core.PaymentPaid}},
	}
}

func TestSaveContributionInsertsThenOverwrites(t *testing.T) {
	ctx := context.Background()
	s, err := NewFromSeed(seed())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	c, err := s.SaveContribution(ctx, core.Contribution{MemberID: 2, TypeID: 10, MeetingID: 200, Amount: 1000, Status: core.PaymentPaid})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if c.ID <= 300 {
		t.Fatalf("expected fresh id above seeded ids, got %d", c.ID)
	}

	c.Amount = 2500
	if _, err := s.SaveContribution(ctx, c); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	found, ok, err := s.FindContribution(ctx, 2, 10, 200)
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if found.Amount != 2500 {
		t.Fatalf("amount = %d, want 2500", found.Amount)
	}

	if _, err := s.SaveContribution(ctx, core.Contribution{ID: 999, Amount: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
	if _, err := s.SaveContribution(ctx, core.Contribution{Amount: -1}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestListMeetingsIsBoundedAndOrdered(t *testing.T) {
	s, _ := NewFromSeed(seed())
	got, err := s.ListMeetings(context.Background(), core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != 201 || got[1].ID != 200 {
		t.Fatalf("unexpected meetings: %+v", got)
	}
}

func TestListContributionsFilter(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFromSeed(seed())
	_, _ = s.SaveContribution(ctx, core.Contribution{MemberID: 2, TypeID: 10, MeetingID: 200, Amount: 1000, Status: core.PaymentPaid})

	tests := []struct {
		name   string
		filter ports.ContributionFilter
		want   int
	}{
		{"all", ports.ContributionFilter{}, 2},
		{"by member", ports.ContributionFilter{MemberID: 1}, 1},
		{"by meeting", ports.ContributionFilter{MeetingID: 200}, 1},
		{"by member and meeting", ports.ContributionFilter{MemberID: 1, MeetingID: 200}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListContributions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d rows, want %d", len(got), tt.want)
			}
		})
	}
}

func TestDeleteAndStatusUpdate(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFromSeed(seed())

	if err := s.DeleteContribution(ctx, 300); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteContribution(ctx, 300); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
	if err := s.UpdateMeetingStatus(ctx, 201, core.MeetingReopened); err != nil {
		t.Fatalf("update: %v", err)
	}
	m, _ := s.GetMeeting(ctx, 201)
	if m.Status != core.MeetingReopened {
		t.Fatalf("status = %s", m.Status)
	}
}

func TestBeneficiaryConfigMissingIsNotFound(t *testing.T) {
	s := New()
	if _, err := s.GetBeneficiaryConfig(context.Background()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.SetBeneficiaryConfig(context.Background(), core.BeneficiaryConfig{Mode: "bogus"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	// No file -> empty store
	s, err := NewFromFiles(dir)
	if err != nil {
		t.Fatalf("empty dir: %v", err)
	}
	if members, _ := s.ListMembers(context.Background()); len(members) != 0 {
		t.Fatalf("expected empty store, got %v", members)
	}

	content := `{
  "members": [{"id": 1, "name": "Awa", "active": true, "groups": ["sport"]}],
  "contribution_types": [{"id": 10, "name": "Cotisation", "default_amount": 5000, "mandatory": true, "entry_mode": "monetary"}],
  "fiscal_periods": [{"id": 100, "name": "2024", "start": "2024-01-01", "end": "2024-12-31", "status": "active"}],
  "meetings": [{"id": 200, "date": "2024-03-02", "status": "planned"}],
  "beneficiary": {"mode": "percentage", "percentage": "80"}
}`
	if err := os.WriteFile(filepath.Join(dir, SeedFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFiles(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m, err := s.GetMeeting(context.Background(), 200)
	if err != nil || !m.Date.Equal(core.NewDate(2024, 3, 2).Time) {
		t.Fatalf("meeting = %+v err=%v", m, err)
	}
	mem, _ := s.GetMember(context.Background(), 1)
	if !mem.InGroup("SPORT") {
		t.Fatalf("groups not loaded: %+v", mem)
	}
	cfg, err := s.GetBeneficiaryConfig(context.Background())
	if err != nil || cfg.Percentage.String() != "80" {
		t.Fatalf("beneficiary = %+v err=%v", cfg, err)
	}

	if err := os.WriteFile(filepath.Join(dir, SeedFileName), []byte(`{"meetings":[{"id":1,"date":"2024-01-01","status":"done"}]}`), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFiles(dir); err == nil {
		t.Fatal("expected invalid status to be rejected")
	}
}

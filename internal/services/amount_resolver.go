// Package services implements the contribution reconciliation engine:
// expected-amount resolution, the contribution ledger, the meeting
// lifecycle, period aggregation and beneficiary payouts.
package services

import "tontine/internal/core"

// ResolutionSource tells which layer produced an expected amount.
type ResolutionSource string

const (
	SourceOverride ResolutionSource = "override"
	SourceDefault  ResolutionSource = "default"
	SourceNone     ResolutionSource = "none"
)

type overrideKey struct {
	memberID, typeID, periodID int64
}

// AmountResolver resolves what a member owes for a contribution type in a
// fiscal period from a snapshot of the override table. It is read-only once
// built and never fails: unresolved amounts are zero.
type AmountResolver struct {
	overrides map[overrideKey]core.AmountOverride
}

// NewAmountResolver indexes the active overrides. When several active
// overrides share a key the most recent one wins.
func NewAmountResolver(overrides []core.AmountOverride) *AmountResolver {
	idx := make(map[overrideKey]core.AmountOverride, len(overrides))
	for _, o := range overrides {
		if !o.Active {
			continue
		}
		k := overrideKey{o.MemberID, o.TypeID, o.PeriodID}
		if cur, ok := idx[k]; ok && !newerOverride(o, cur) {
			continue
		}
		idx[k] = o
	}
	return &AmountResolver{overrides: idx}
}

func newerOverride(a, b core.AmountOverride) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// Resolve returns the expected amount for (member, type, period).
func (r *AmountResolver) Resolve(memberID int64, t core.ContributionType, periodID int64) core.Money {
	amount, _ := r.ResolveWithSource(memberID, t, periodID)
	return amount
}

// ResolveWithSource is Resolve plus the layer that answered:
// active override, then the type default, then zero.
func (r *AmountResolver) ResolveWithSource(memberID int64, t core.ContributionType, periodID int64) (core.Money, ResolutionSource) {
	if r != nil {
		if o, ok := r.overrides[overrideKey{memberID, t.ID, periodID}]; ok {
			return nonNegative(o.Amount), SourceOverride
		}
	}
	if t.DefaultAmount != nil {
		return nonNegative(*t.DefaultAmount), SourceDefault
	}
	return 0, SourceNone
}

// HasOverride reports whether an active override exists for the key.
func (r *AmountResolver) HasOverride(memberID, typeID, periodID int64) bool {
	if r == nil {
		return false
	}
	_, ok := r.overrides[overrideKey{memberID, typeID, periodID}]
	return ok
}

func nonNegative(m core.Money) core.Money {
	if m < 0 {
		return 0
	}
	return m
}

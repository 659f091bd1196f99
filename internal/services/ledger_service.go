package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tontine/internal/core"
	applog "tontine/internal/log"
	"tontine/internal/ports"
)

// ScopeKind selects what a ledger query sums over.
type ScopeKind int

const (
	ScopeMeeting ScopeKind = iota + 1
	ScopePeriod
)

// Scope is either a single meeting or a whole fiscal period.
type Scope struct {
	Kind ScopeKind
	ID   int64
}

func MeetingScope(meetingID int64) Scope { return Scope{Kind: ScopeMeeting, ID: meetingID} }
func PeriodScope(periodID int64) Scope   { return Scope{Kind: ScopePeriod, ID: periodID} }

func (s Scope) String() string {
	switch s.Kind {
	case ScopeMeeting:
		return fmt.Sprintf("meeting:%d", s.ID)
	case ScopePeriod:
		return fmt.Sprintf("period:%d", s.ID)
	default:
		return "scope:invalid"
	}
}

var ErrInvalidScope = errors.New("invalid scope")

// PaymentInput is a payment to record for (member, type, meeting).
type PaymentInput struct {
	MemberID  int64
	TypeID    int64
	MeetingID int64
	Amount    core.Money
	PaidOn    core.Date // defaults to the meeting date
}

// PreviewInput describes a payment being typed but not yet committed.
// EditingID is the contribution being edited, zero for a new one.
type PreviewInput struct {
	MemberID  int64
	TypeID    int64
	Scope     Scope
	EditingID int64
	Candidate core.Money
}

type ledgerStore interface {
	ports.MemberDirectory
	ports.ConfigReader
	ports.MeetingStore
	ports.ContributionStore
}

// LedgerService records payments and derives settlement state. It is the
// single source of truth: derived views registered through OnChange are
// dropped after every committed mutation, never patched.
type LedgerService struct {
	store     ledgerStore
	publisher ports.EventPublisher
	logger    *applog.Logger
	now       func() time.Time

	mu           sync.RWMutex
	invalidators []ports.Invalidator
}

func NewLedgerService(store ledgerStore, publisher ports.EventPublisher, logger *applog.Logger) *LedgerService {
	if logger == nil {
		logger = applog.Default()
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentLedger),
		now:       time.Now,
	}
}

// OnChange registers a derived view to invalidate after each mutation.
func (s *LedgerService) OnChange(inv ports.Invalidator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidators = append(s.invalidators, inv)
}

// RecordPayment creates or overwrites the contribution keyed by
// (member, type, meeting) with status paid.
func (s *LedgerService) RecordPayment(ctx context.Context, in PaymentInput) (core.Contribution, error) {
	if err := in.Amount.Validate(); err != nil {
		return core.Contribution{}, err
	}

	meeting, period, err := s.writableMeeting(ctx, in.MeetingID)
	if err != nil {
		return core.Contribution{}, err
	}

	member, err := s.store.GetMember(ctx, in.MemberID)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("get member: %w", err)
	}
	if !member.Active {
		return core.Contribution{}, fmt.Errorf("member %d: %w", member.ID, core.ErrInactiveMember)
	}

	ctype, err := s.store.GetContributionType(ctx, in.TypeID)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("get contribution type: %w", err)
	}

	amount := in.Amount
	if ctype.EntryMode == core.EntryBoolean {
		// A validation checkbox settles exactly what is owed.
		resolver, err := s.resolver(ctx, period.ID)
		if err != nil {
			return core.Contribution{}, err
		}
		amount = resolver.Resolve(member.ID, ctype, period.ID)
	}

	c, found, err := s.store.FindContribution(ctx, member.ID, ctype.ID, meeting.ID)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("find contribution: %w", err)
	}
	if !found {
		c = core.Contribution{MemberID: member.ID, TypeID: ctype.ID, MeetingID: meeting.ID}
	}
	c.PeriodID = period.ID
	c.Amount = amount
	c.PaidOn = in.PaidOn
	if c.PaidOn.IsZero() {
		c.PaidOn = meeting.Date
	}
	c.Status = core.PaymentPaid
	c.UpdatedAt = s.now().UTC()

	saved, err := s.store.SaveContribution(ctx, c)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("save contribution: %w", err)
	}

	s.logger.InfoContext(ctx, "Payment recorded", applog.NewFields().
		WithContribution(saved.MemberID, saved.TypeID, saved.MeetingID, int64(saved.Amount)).
		WithPeriod(saved.PeriodID).
		WithOperation(applog.OpRecord).
		ToSlice()...)

	s.changed(ctx, core.LedgerEvent{
		Kind:           core.EventPaymentRecorded,
		PeriodID:       saved.PeriodID,
		MeetingID:      saved.MeetingID,
		MemberID:       saved.MemberID,
		TypeID:         saved.TypeID,
		ContributionID: saved.ID,
	})
	return saved, nil
}

// DeletePayment removes a contribution under the same preconditions as
// RecordPayment.
func (s *LedgerService) DeletePayment(ctx context.Context, contributionID int64) error {
	c, err := s.store.GetContribution(ctx, contributionID)
	if err != nil {
		return fmt.Errorf("get contribution: %w", err)
	}
	_, period, err := s.writableMeeting(ctx, c.MeetingID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteContribution(ctx, contributionID); err != nil {
		return fmt.Errorf("delete contribution: %w", err)
	}

	s.logger.InfoContext(ctx, "Payment deleted",
		applog.FieldContributionID, contributionID,
		applog.FieldMeetingID, c.MeetingID,
		applog.FieldOperation, applog.OpDelete)

	s.changed(ctx, core.LedgerEvent{
		Kind:           core.EventPaymentDeleted,
		PeriodID:       period.ID,
		MeetingID:      c.MeetingID,
		MemberID:       c.MemberID,
		TypeID:         c.TypeID,
		ContributionID: contributionID,
	})
	return nil
}

// writableMeeting enforces both write preconditions: the meeting is in an
// editable state and a fiscal period contains its date.
func (s *LedgerService) writableMeeting(ctx context.Context, meetingID int64) (core.Meeting, core.FiscalPeriod, error) {
	meeting, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return core.Meeting{}, core.FiscalPeriod{}, fmt.Errorf("get meeting: %w", err)
	}
	if !meeting.Status.IsEditable() {
		return meeting, core.FiscalPeriod{}, &core.PreconditionError{
			Precondition: core.PreconditionMeetingEditable,
			MeetingID:    meeting.ID,
			Status:       meeting.Status,
		}
	}
	period, ok, err := s.periodOf(ctx, meeting)
	if err != nil {
		return meeting, core.FiscalPeriod{}, err
	}
	if !ok {
		return meeting, core.FiscalPeriod{}, &core.PreconditionError{
			Precondition: core.PreconditionFiscalPeriod,
			MeetingID:    meeting.ID,
			Status:       meeting.Status,
		}
	}
	return meeting, period, nil
}

// periodOf computes the fiscal period of a meeting by date containment.
func (s *LedgerService) periodOf(ctx context.Context, meeting core.Meeting) (core.FiscalPeriod, bool, error) {
	periods, err := s.store.ListFiscalPeriods(ctx)
	if err != nil {
		return core.FiscalPeriod{}, false, fmt.Errorf("list fiscal periods: %w", err)
	}
	p, ok := core.PeriodFor(periods, meeting.Date)
	return p, ok, nil
}

// PeriodOfMeeting exposes the computed meeting -> period association.
func (s *LedgerService) PeriodOfMeeting(ctx context.Context, meetingID int64) (core.FiscalPeriod, bool, error) {
	meeting, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return core.FiscalPeriod{}, false, fmt.Errorf("get meeting: %w", err)
	}
	return s.periodOf(ctx, meeting)
}

func (s *LedgerService) resolver(ctx context.Context, periodID int64) (*AmountResolver, error) {
	if periodID == 0 {
		return NewAmountResolver(nil), nil
	}
	overrides, err := s.store.ListOverrides(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return NewAmountResolver(overrides), nil
}

// Expected resolves what a member owes for a type in a period.
func (s *LedgerService) Expected(ctx context.Context, memberID, typeID, periodID int64) (core.Money, ResolutionSource, error) {
	ctype, err := s.store.GetContributionType(ctx, typeID)
	if err != nil {
		return 0, SourceNone, fmt.Errorf("get contribution type: %w", err)
	}
	resolver, err := s.resolver(ctx, periodID)
	if err != nil {
		return 0, SourceNone, err
	}
	amount, source := resolver.ResolveWithSource(memberID, ctype, periodID)
	if source == SourceNone {
		s.logger.DebugContext(ctx, "No expected amount configured, using zero",
			applog.FieldMemberID, memberID,
			applog.FieldTypeID, typeID,
			applog.FieldPeriodID, periodID)
	}
	return amount, source, nil
}

// CumulativePaid sums paid contributions of (member, type) within scope.
// A zero typeID sums every type.
func (s *LedgerService) CumulativePaid(ctx context.Context, memberID, typeID int64, scope Scope) (core.Money, error) {
	return s.paid(ctx, memberID, typeID, scope, 0)
}

// MemberPaidTotal sums every paid contribution of a member within scope.
func (s *LedgerService) MemberPaidTotal(ctx context.Context, memberID int64, scope Scope) (core.Money, error) {
	return s.paid(ctx, memberID, 0, scope, 0)
}

func (s *LedgerService) paid(ctx context.Context, memberID, typeID int64, scope Scope, excludeID int64) (core.Money, error) {
	filter := ports.ContributionFilter{MemberID: memberID, TypeID: typeID}
	var counted map[int64]core.Meeting

	switch scope.Kind {
	case ScopeMeeting:
		filter.MeetingID = scope.ID
	case ScopePeriod:
		period, err := s.store.GetFiscalPeriod(ctx, scope.ID)
		if err != nil {
			return 0, fmt.Errorf("get fiscal period: %w", err)
		}
		counted, err = countedMeetings(ctx, s.store, s.store, period)
		if err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidScope, scope)
	}

	rows, err := s.store.ListContributions(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("list contributions: %w", err)
	}

	var total core.Money
	for _, c := range rows {
		if c.Status != core.PaymentPaid || (excludeID != 0 && c.ID == excludeID) {
			continue
		}
		if counted != nil {
			if _, ok := counted[c.MeetingID]; !ok {
				continue
			}
		}
		total += c.Amount
	}
	return total, nil
}

// scopePeriod resolves the fiscal period used to price a scope. Zero means
// no period could be found; expected amounts then fall back to defaults.
func (s *LedgerService) scopePeriod(ctx context.Context, scope Scope) (int64, error) {
	switch scope.Kind {
	case ScopePeriod:
		return scope.ID, nil
	case ScopeMeeting:
		meeting, err := s.store.GetMeeting(ctx, scope.ID)
		if err != nil {
			return 0, fmt.Errorf("get meeting: %w", err)
		}
		p, ok, err := s.periodOf(ctx, meeting)
		if err != nil || !ok {
			return 0, err
		}
		return p.ID, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidScope, scope)
	}
}

// Settlement derives expected, paid, remaining, surplus and status.
func (s *LedgerService) Settlement(ctx context.Context, memberID, typeID int64, scope Scope) (core.Settlement, error) {
	periodID, err := s.scopePeriod(ctx, scope)
	if err != nil {
		return core.Settlement{}, err
	}
	expected, _, err := s.Expected(ctx, memberID, typeID, periodID)
	if err != nil {
		return core.Settlement{}, err
	}
	paid, err := s.CumulativePaid(ctx, memberID, typeID, scope)
	if err != nil {
		return core.Settlement{}, err
	}
	return core.Settle(expected, paid), nil
}

// Remaining is max(0, expected - cumulative paid).
func (s *LedgerService) Remaining(ctx context.Context, memberID, typeID int64, scope Scope) (core.Money, error) {
	st, err := s.Settlement(ctx, memberID, typeID, scope)
	if err != nil {
		return 0, err
	}
	return st.Remaining, nil
}

// ClassifyStatus returns solde, partiel or impaye for the scope.
func (s *LedgerService) ClassifyStatus(ctx context.Context, memberID, typeID int64, scope Scope) (core.SettlementStatus, error) {
	st, err := s.Settlement(ctx, memberID, typeID, scope)
	if err != nil {
		return "", err
	}
	return st.Status, nil
}

// PreviewPayment computes the settlement a candidate amount would produce.
// The edited contribution's own prior amount is left out of the paid sum so
// it is not counted twice.
func (s *LedgerService) PreviewPayment(ctx context.Context, in PreviewInput) (core.Settlement, error) {
	if err := in.Candidate.Validate(); err != nil {
		return core.Settlement{}, err
	}
	periodID, err := s.scopePeriod(ctx, in.Scope)
	if err != nil {
		return core.Settlement{}, err
	}
	expected, _, err := s.Expected(ctx, in.MemberID, in.TypeID, periodID)
	if err != nil {
		return core.Settlement{}, err
	}
	prior, err := s.paid(ctx, in.MemberID, in.TypeID, in.Scope, in.EditingID)
	if err != nil {
		return core.Settlement{}, err
	}
	return core.Settle(expected, prior+in.Candidate), nil
}

// Reloaded announces a bulk load that bypassed the ledger, such as a seed
// import. Every derived view is dropped.
func (s *LedgerService) Reloaded(ctx context.Context) {
	s.logger.InfoContext(ctx, "Ledger reloaded, invalidating all derived views")
	s.changed(ctx, core.LedgerEvent{Kind: core.EventLedgerReloaded})
}

// changed invalidates derived views and announces the event. Publishing is
// best effort: the mutation is already committed.
func (s *LedgerService) changed(ctx context.Context, ev core.LedgerEvent) {
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}

	s.mu.RLock()
	invalidators := append([]ports.Invalidator(nil), s.invalidators...)
	s.mu.RUnlock()
	for _, inv := range invalidators {
		inv.Invalidate(ctx, ev.PeriodID)
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No event publisher configured, skipping ledger event", "kind", ev.Kind)
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		s.logger.LogError(ctx, "Failed to publish ledger event", err, applog.OpPublish,
			applog.NewFields().WithPeriod(ev.PeriodID))
	}
}

// countedMeetings returns the meetings whose computed fiscal period is
// period and whose payments count towards period sums.
func countedMeetings(ctx context.Context, meetings ports.MeetingStore, cfg ports.ConfigReader, period core.FiscalPeriod) (map[int64]core.Meeting, error) {
	list, err := meetings.ListMeetings(ctx, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	periods, err := cfg.ListFiscalPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fiscal periods: %w", err)
	}
	out := make(map[int64]core.Meeting, len(list))
	for _, m := range list {
		if !m.Status.CountsTowardsPeriod() {
			continue
		}
		if p, ok := core.PeriodFor(periods, m.Date); !ok || p.ID != period.ID {
			continue
		}
		out[m.ID] = m
	}
	return out, nil
}

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tontine/internal/core"
	applog "tontine/internal/log"
	"tontine/internal/ports"
	"tontine/internal/storage/memory"
)

const (
	memberAwa    = 1
	memberBinta  = 2
	memberCheikh = 3 // inactive

	typeCotisation = 10 // 5000, mandatory
	typeTontine    = 11 // 10000, mandatory
	typeSport      = 12 // no default, optional
	typeValidation = 13 // 2000, boolean entry

	period2024 = 100

	meetingClosed    = 200
	meetingOpen      = 201
	meetingCancelled = 202
	meetingPlanned   = 203
	meetingOrphan    = 204 // outside every fiscal period

	contributionClosed    = 300
	contributionCancelled = 301
)

func fixtureSeed() core.Seed {
	return core.Seed{
		Members: []core.Member{
			{ID: memberAwa, Name: "Awa", Active: true, Groups: []string{"sport"}},
			{ID: memberBinta, Name: "Binta", Active: true},
			{ID: memberCheikh, Name: "Cheikh", Active: false},
		},
		Types: []core.ContributionType{
			{ID: typeCotisation, Name: "Cotisation", DefaultAmount: core.Money(5000).Ptr(), Mandatory: true, EntryMode: core.EntryMonetary},
			{ID: typeTontine, Name: "Tontine", DefaultAmount: core.Money(10000).Ptr(), Mandatory: true, EntryMode: core.EntryMonetary},
			{ID: typeSport, Name: "Sport", Mandatory: false, EntryMode: core.EntryMonetary},
			{ID: typeValidation, Name: "Presence", DefaultAmount: core.Money(2000).Ptr(), Mandatory: true, EntryMode: core.EntryBoolean},
		},
		Overrides: []core.AmountOverride{
			{ID: 50, MemberID: memberBinta, TypeID: typeCotisation, PeriodID: period2024, Amount: 7000, Active: true},
		},
		Periods: []core.FiscalPeriod{
			{ID: period2024, Name: "2024", Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 12, 31), Status: core.PeriodActive},
		},
		Meetings: []core.Meeting{
			{ID: meetingClosed, Date: core.NewDate(2024, 1, 6), Status: core.MeetingClosed},
			{ID: meetingOpen, Date: core.NewDate(2024, 2, 3), Status: core.MeetingInProgress},
			{ID: meetingCancelled, Date: core.NewDate(2024, 3, 2), Status: core.MeetingCancelled},
			{ID: meetingPlanned, Date: core.NewDate(2024, 4, 6), Status: core.MeetingPlanned},
			{ID: meetingOrphan, Date: core.NewDate(2025, 6, 1), Status: core.MeetingPlanned},
		},
		Contributions: []core.Contribution{
			{ID: contributionClosed, MemberID: memberAwa, TypeID: typeCotisation, MeetingID: meetingClosed, PeriodID: period2024, Amount: 5000, Status: core.PaymentPaid},
			{ID: contributionCancelled, MemberID: memberAwa, TypeID: typeCotisation, MeetingID: meetingCancelled, PeriodID: period2024, Amount: 5000, Status: core.PaymentPaid},
		},
		Sanctions: []core.Sanction{
			{ID: 400, MemberID: memberAwa, Amount: 10000, Status: core.PaymentUnpaid, Context: core.ContextGeneral},
			{ID: 401, MemberID: memberAwa, Amount: 5000, Status: core.PaymentPartial, Context: core.ContextSport},
			{ID: 402, MemberID: memberAwa, Amount: 3000, Status: core.PaymentPaid, Context: core.ContextGeneral},
		},
	}
}

func newFixtureStore(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.NewFromSeed(fixtureSeed())
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return s
}

func newTestLedger(t *testing.T, store *memory.Store, pub *recordingPublisher) *LedgerService {
	t.Helper()
	var publisher ports.EventPublisher
	if pub != nil {
		publisher = pub
	}
	l := NewLedgerService(store, publisher, applog.Discard())
	l.now = func() time.Time { return time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC) }
	return l
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev core.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Events() []core.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.LedgerEvent(nil), p.events...)
}

type recordingInvalidator struct {
	mu      sync.Mutex
	periods []int64
}

func (r *recordingInvalidator) Invalidate(_ context.Context, periodID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.periods = append(r.periods, periodID)
}

func (r *recordingInvalidator) Calls() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.periods...)
}

var errBoom = errors.New("boom")

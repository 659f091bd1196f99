package services

import (
	"context"
	"errors"
	"testing"

	"tontine/internal/core"
	applog "tontine/internal/log"
	"tontine/internal/ports"
)

func newTestMeetings(t *testing.T, auth ports.Authorizer) (*MeetingService, *LedgerService, *recordingInvalidator, *recordingPublisher) {
	t.Helper()
	store := newFixtureStore(t)
	pub := &recordingPublisher{}
	ledger := newTestLedger(t, store, pub)
	inv := &recordingInvalidator{}
	ledger.OnChange(inv)
	return NewMeetingService(store, ledger, auth, applog.Discard()), ledger, inv, pub
}

func TestTransition(t *testing.T) {
	treasurer := ports.Actor{Name: "fatou", Roles: []string{"Treasurer"}}
	member := ports.Actor{Name: "moussa", Roles: []string{"member"}}

	tests := []struct {
		name    string
		auth    ports.Authorizer
		meeting int64
		to      core.MeetingStatus
		actor   ports.Actor
		wantErr error
	}{
		{name: "start planned meeting", meeting: meetingPlanned, to: core.MeetingInProgress},
		{name: "close running meeting", meeting: meetingOpen, to: core.MeetingClosed},
		{name: "cancel running meeting", meeting: meetingOpen, to: core.MeetingCancelled},
		{name: "reopen with role", auth: NewRoleAuthorizer("treasurer"), meeting: meetingClosed, to: core.MeetingReopened, actor: treasurer},
		{name: "reopen without role", auth: NewRoleAuthorizer("treasurer"), meeting: meetingClosed, to: core.MeetingReopened, actor: member, wantErr: core.ErrForbidden},
		{name: "reopen without authorizer", meeting: meetingClosed, to: core.MeetingReopened, actor: treasurer, wantErr: core.ErrForbidden},
		{name: "cancelled is terminal", meeting: meetingCancelled, to: core.MeetingPlanned, wantErr: core.ErrInvalidTransition},
		{name: "cannot skip to closed", meeting: meetingPlanned, to: core.MeetingClosed, wantErr: core.ErrInvalidTransition},
		{name: "unknown meeting", meeting: 999, to: core.MeetingClosed, wantErr: core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, _, inv, pub := newTestMeetings(t, tt.auth)

			got, err := svc.Transition(ctx, tt.meeting, tt.to, tt.actor)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if len(inv.Calls()) != 0 || len(pub.Events()) != 0 {
					t.Fatal("rejected transition must not invalidate or publish")
				}
				return
			}
			if err != nil {
				t.Fatalf("transition: %v", err)
			}
			if got.Status != tt.to {
				t.Fatalf("status = %s, want %s", got.Status, tt.to)
			}
			stored, _ := svc.store.GetMeeting(ctx, tt.meeting)
			if stored.Status != tt.to {
				t.Fatalf("stored status = %s", stored.Status)
			}
			if calls := inv.Calls(); len(calls) != 1 || calls[0] != period2024 {
				t.Fatalf("invalidations = %v", calls)
			}
			if ev := pub.Events(); len(ev) != 1 || ev[0].Kind != core.EventMeetingTransitioned || ev[0].MeetingStatus != tt.to {
				t.Fatalf("events = %+v", ev)
			}
		})
	}
}

func TestReopenedMeetingAcceptsWrites(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _, _ := newTestMeetings(t, NewRoleAuthorizer("admin"))

	in := PaymentInput{MemberID: memberBinta, TypeID: typeTontine, MeetingID: meetingClosed, Amount: 1000}
	if _, err := ledger.RecordPayment(ctx, in); !errors.Is(err, core.ErrPrecondition) {
		t.Fatalf("closed meeting accepted a write: %v", err)
	}
	if _, err := svc.Transition(ctx, meetingClosed, core.MeetingReopened, ports.Actor{Name: "a", Roles: []string{"admin"}}); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := ledger.RecordPayment(ctx, in); err != nil {
		t.Fatalf("reopened meeting rejected a write: %v", err)
	}
	if _, err := svc.Transition(ctx, meetingClosed, core.MeetingClosed, ports.Actor{}); err != nil {
		t.Fatalf("close again: %v", err)
	}
	if _, err := ledger.RecordPayment(ctx, in); !errors.Is(err, core.ErrPrecondition) {
		t.Fatalf("re-closed meeting accepted a write: %v", err)
	}
}

func TestCancellingMeetingRemovesItsPaymentsFromPeriod(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _, _ := newTestMeetings(t, nil)

	if _, err := ledger.RecordPayment(ctx, PaymentInput{MemberID: memberBinta, TypeID: typeTontine, MeetingID: meetingOpen, Amount: 3000}); err != nil {
		t.Fatalf("record: %v", err)
	}
	before, _ := ledger.CumulativePaid(ctx, memberBinta, typeTontine, PeriodScope(period2024))
	if _, err := svc.Transition(ctx, meetingOpen, core.MeetingCancelled, ports.Actor{}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	after, _ := ledger.CumulativePaid(ctx, memberBinta, typeTontine, PeriodScope(period2024))
	if before != 3000 || after != 0 {
		t.Fatalf("paid before=%d after=%d", before, after)
	}
}

func TestMeetingView(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestMeetings(t, nil)

	view, err := svc.MeetingView(ctx, meetingClosed)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Mode != core.ViewComparative || view.Editable || view.PeriodID != period2024 {
		t.Fatalf("closed view header = %+v", view)
	}
	// two active members x four types; the inactive member has no row here
	if len(view.Cells) != 8 {
		t.Fatalf("cells = %d, want 8", len(view.Cells))
	}
	var found bool
	for _, c := range view.Cells {
		if c.MemberID == memberCheikh {
			t.Fatalf("inactive member without payments listed: %+v", c)
		}
		if c.MemberID == memberAwa && c.TypeID == typeCotisation {
			found = true
			if c.ContributionID != contributionClosed || c.Status != core.StatusSolde || c.Paid != 5000 {
				t.Fatalf("cell = %+v", c)
			}
		}
	}
	if !found {
		t.Fatal("missing Awa/Cotisation cell")
	}

	open, err := svc.MeetingView(ctx, meetingOpen)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if open.Mode != core.ViewEntry || !open.Editable {
		t.Fatalf("open view header = %+v", open)
	}

	orphan, err := svc.MeetingView(ctx, meetingOrphan)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if orphan.PeriodID != 0 {
		t.Fatalf("orphan meeting should have no period, got %d", orphan.PeriodID)
	}
}

func TestRoleAuthorizer(t *testing.T) {
	a := NewRoleAuthorizer(" Admin ", "", "treasurer")
	tests := []struct {
		roles []string
		want  bool
	}{
		{[]string{"admin"}, true},
		{[]string{"member", "TREASURER"}, true},
		{[]string{"member"}, false},
		{nil, false},
	}
	for _, tt := range tests {
		got, err := a.CanReopen(context.Background(), ports.Actor{Roles: tt.roles})
		if err != nil || got != tt.want {
			t.Fatalf("roles %v: got %v err=%v", tt.roles, got, err)
		}
	}
}

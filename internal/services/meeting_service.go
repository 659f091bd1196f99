package services

import (
	"context"
	"fmt"
	"sort"

	"tontine/internal/core"
	applog "tontine/internal/log"
	"tontine/internal/ports"
)

type meetingStore interface {
	ports.MemberDirectory
	ports.ConfigReader
	ports.MeetingStore
	ports.ContributionStore
}

// MeetingService drives the meeting lifecycle and builds per-meeting grids.
type MeetingService struct {
	store  meetingStore
	ledger *LedgerService
	auth   ports.Authorizer
	logger *applog.Logger
}

func NewMeetingService(store meetingStore, ledger *LedgerService, auth ports.Authorizer, logger *applog.Logger) *MeetingService {
	if logger == nil {
		logger = applog.Default()
	}
	return &MeetingService{
		store:  store,
		ledger: ledger,
		auth:   auth,
		logger: logger.WithComponent(applog.ComponentLifecycle),
	}
}

// Transition moves a meeting to a new state. Reopening a closed meeting
// requires the actor to be authorized.
func (s *MeetingService) Transition(ctx context.Context, meetingID int64, to core.MeetingStatus, actor ports.Actor) (core.Meeting, error) {
	meeting, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return core.Meeting{}, fmt.Errorf("get meeting: %w", err)
	}
	from := meeting.Status

	next, err := core.Transition(from, to)
	if err != nil {
		return meeting, err
	}
	if core.RequiresPrivilege(from, next) {
		if err := s.authorize(ctx, actor); err != nil {
			s.logger.WarnContext(ctx, "Reopen refused",
				applog.FieldMeetingID, meetingID,
				applog.FieldActor, actor.Name)
			return meeting, err
		}
	}

	if err := s.store.UpdateMeetingStatus(ctx, meetingID, next); err != nil {
		return meeting, fmt.Errorf("update meeting status: %w", err)
	}
	meeting.Status = next

	s.logger.InfoContext(ctx, "Meeting transitioned",
		applog.FieldMeetingID, meetingID,
		applog.FieldFromStatus, from,
		applog.FieldToStatus, next,
		applog.FieldActor, actor.Name,
		applog.FieldOperation, applog.OpTransition)

	// Closing or cancelling changes which payments count towards the
	// period, so derived views are dropped like after any payment.
	var periodID int64
	if p, ok, err := s.ledger.periodOf(ctx, meeting); err == nil && ok {
		periodID = p.ID
	}
	s.ledger.changed(ctx, core.LedgerEvent{
		Kind:          core.EventMeetingTransitioned,
		PeriodID:      periodID,
		MeetingID:     meetingID,
		MeetingStatus: next,
	})
	return meeting, nil
}

func (s *MeetingService) authorize(ctx context.Context, actor ports.Actor) error {
	if s.auth == nil {
		return fmt.Errorf("reopen meeting: no authorizer configured: %w", core.ErrForbidden)
	}
	ok, err := s.auth.CanReopen(ctx, actor)
	if err != nil {
		return fmt.Errorf("authorize reopen: %w", err)
	}
	if !ok {
		return fmt.Errorf("actor %q may not reopen meetings: %w", actor.Name, core.ErrForbidden)
	}
	return nil
}

// MeetingView builds the (member, type) grid of a meeting. Editable meetings
// render in entry mode; closed and cancelled ones are comparative.
func (s *MeetingService) MeetingView(ctx context.Context, meetingID int64) (core.MeetingView, error) {
	meeting, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return core.MeetingView{}, fmt.Errorf("get meeting: %w", err)
	}

	view := core.MeetingView{
		Meeting:  meeting,
		Mode:     core.ViewComparative,
		Editable: meeting.Status.IsEditable(),
	}
	if view.Editable {
		view.Mode = core.ViewEntry
	}

	period, ok, err := s.ledger.periodOf(ctx, meeting)
	if err != nil {
		return core.MeetingView{}, err
	}
	if ok {
		view.PeriodID = period.ID
	}

	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return core.MeetingView{}, fmt.Errorf("list members: %w", err)
	}
	types, err := s.store.ListContributionTypes(ctx)
	if err != nil {
		return core.MeetingView{}, fmt.Errorf("list contribution types: %w", err)
	}
	resolver, err := s.ledger.resolver(ctx, view.PeriodID)
	if err != nil {
		return core.MeetingView{}, err
	}
	rows, err := s.store.ListContributions(ctx, ports.ContributionFilter{MeetingID: meetingID})
	if err != nil {
		return core.MeetingView{}, fmt.Errorf("list contributions: %w", err)
	}

	type cellKey struct{ member, ctype int64 }
	paid := make(map[cellKey]core.Contribution, len(rows))
	for _, c := range rows {
		paid[cellKey{c.MemberID, c.TypeID}] = c
	}

	sort.SliceStable(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	for _, m := range members {
		for _, t := range types {
			c, has := paid[cellKey{m.ID, t.ID}]
			if !m.Active && !has {
				continue
			}
			var amount core.Money
			if has && c.Status == core.PaymentPaid {
				amount = c.Amount
			}
			view.Cells = append(view.Cells, core.MeetingCell{
				MemberID:       m.ID,
				TypeID:         t.ID,
				ContributionID: c.ID,
				Settlement:     core.Settle(resolver.Resolve(m.ID, t, view.PeriodID), amount),
			})
		}
	}
	return view, nil
}

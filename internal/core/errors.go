package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrPrecondition      = errors.New("precondition failed")
	ErrInvalidTransition = errors.New("invalid meeting transition")
	ErrForbidden         = errors.New("forbidden")
	ErrInactiveMember    = errors.New("member is inactive")
	ErrPayoutUnavailable = errors.New("payout unavailable")
)

// Preconditions checked before any ledger mutation.
const (
	PreconditionMeetingEditable = "meeting_not_editable"
	PreconditionFiscalPeriod    = "fiscal_period_missing"
)

// PreconditionError reports which ledger write precondition failed.
type PreconditionError struct {
	Precondition string
	MeetingID    int64
	Status       MeetingStatus
}

func (e *PreconditionError) Error() string {
	switch e.Precondition {
	case PreconditionMeetingEditable:
		return fmt.Sprintf("meeting %d is %s and does not accept contribution changes", e.MeetingID, e.Status)
	case PreconditionFiscalPeriod:
		return fmt.Sprintf("no fiscal period contains the date of meeting %d", e.MeetingID)
	default:
		return fmt.Sprintf("precondition %s failed for meeting %d", e.Precondition, e.MeetingID)
	}
}

func (e *PreconditionError) Unwrap() error {
	return ErrPrecondition
}

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

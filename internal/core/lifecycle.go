package core

import (
	"fmt"
	"strings"
)

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingPlanned    MeetingStatus = "planned"
	MeetingInProgress MeetingStatus = "in_progress"
	MeetingClosed     MeetingStatus = "closed"
	MeetingReopened   MeetingStatus = "reopened"
	MeetingCancelled  MeetingStatus = "cancelled"
)

// meetingTransitions lists the allowed target states for each state.
var meetingTransitions = map[MeetingStatus][]MeetingStatus{
	MeetingPlanned:    {MeetingInProgress, MeetingCancelled},
	MeetingInProgress: {MeetingClosed, MeetingCancelled},
	MeetingClosed:     {MeetingReopened},
	MeetingReopened:   {MeetingClosed},
	MeetingCancelled:  nil,
}

// ParseMeetingStatus accepts the canonical names, case-insensitively.
func ParseMeetingStatus(s string) (MeetingStatus, error) {
	st := MeetingStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("unknown meeting status %q", s)
	}
	return st, nil
}

func (s MeetingStatus) IsValid() bool {
	_, ok := meetingTransitions[s]
	return ok
}

// IsEditable reports whether ledger writes are accepted in this state.
func (s MeetingStatus) IsEditable() bool {
	switch s {
	case MeetingPlanned, MeetingInProgress, MeetingReopened:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves this state.
func (s MeetingStatus) IsTerminal() bool {
	return s.IsValid() && len(meetingTransitions[s]) == 0
}

// CountsTowardsPeriod reports whether payments under a meeting in this state
// enter period-wide sums. Cancelled meetings keep their rows for audit only.
func (s MeetingStatus) CountsTowardsPeriod() bool {
	return s != MeetingCancelled
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to MeetingStatus) bool {
	for _, next := range meetingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RequiresPrivilege reports whether the transition needs elevated permission.
func RequiresPrivilege(from, to MeetingStatus) bool {
	return from == MeetingClosed && to == MeetingReopened
}

// NextStates returns the states reachable from s in one step.
func (s MeetingStatus) NextStates() []MeetingStatus {
	return append([]MeetingStatus(nil), meetingTransitions[s]...)
}

// Transition validates from -> to and returns the new state.
func Transition(from, to MeetingStatus) (MeetingStatus, error) {
	if !to.IsValid() {
		return from, fmt.Errorf("%w: unknown target %q", ErrInvalidTransition, to)
	}
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

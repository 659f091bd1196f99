package core

import "time"

type LedgerEventKind string

const (
	EventPaymentRecorded     LedgerEventKind = "payment_recorded"
	EventPaymentDeleted      LedgerEventKind = "payment_deleted"
	EventMeetingTransitioned LedgerEventKind = "meeting_transitioned"
	// EventLedgerReloaded follows a bulk load; it carries no period and
	// invalidates everything.
	EventLedgerReloaded LedgerEventKind = "ledger_reloaded"
)

// LedgerEvent describes a committed change that invalidates derived views.
type LedgerEvent struct {
	Kind           LedgerEventKind
	PeriodID       int64
	MeetingID      int64
	MemberID       int64
	TypeID         int64
	ContributionID int64
	MeetingStatus  MeetingStatus
	At             time.Time
}

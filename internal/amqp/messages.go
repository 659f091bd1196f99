package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"tontine/internal/core"
)

// LedgerEventMessage announces a committed ledger change. Consumers refetch
// whatever they need; the message only says what moved.
type LedgerEventMessage struct {
	EventID        string               `json:"event_id"`
	Kind           core.LedgerEventKind `json:"kind"`
	PeriodID       int64                `json:"period_id"`
	MeetingID      int64                `json:"meeting_id,omitempty"`
	MemberID       int64                `json:"member_id,omitempty"`
	TypeID         int64                `json:"type_id,omitempty"`
	ContributionID int64                `json:"contribution_id,omitempty"`
	MeetingStatus  core.MeetingStatus   `json:"meeting_status,omitempty"`
	Timestamp      time.Time            `json:"timestamp"`
}

// NewLedgerEventMessage wraps a ledger event with a fresh event ID.
func NewLedgerEventMessage(ev core.LedgerEvent) *LedgerEventMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerEventMessage{
		EventID:        uuid.NewString(),
		Kind:           ev.Kind,
		PeriodID:       ev.PeriodID,
		MeetingID:      ev.MeetingID,
		MemberID:       ev.MemberID,
		TypeID:         ev.TypeID,
		ContributionID: ev.ContributionID,
		MeetingStatus:  ev.MeetingStatus,
		Timestamp:      ts,
	}
}

// Event converts the message back to the domain event.
func (m *LedgerEventMessage) Event() core.LedgerEvent {
	return core.LedgerEvent{
		Kind:           m.Kind,
		PeriodID:       m.PeriodID,
		MeetingID:      m.MeetingID,
		MemberID:       m.MemberID,
		TypeID:         m.TypeID,
		ContributionID: m.ContributionID,
		MeetingStatus:  m.MeetingStatus,
		At:             m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON decodes and validates a message body.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Kind {
	case core.EventPaymentRecorded, core.EventPaymentDeleted, core.EventMeetingTransitioned, core.EventLedgerReloaded:
	default:
		return nil, errors.New("unknown ledger event kind: " + string(msg.Kind))
	}
	return &msg, nil
}

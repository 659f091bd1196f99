package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	EntryMonetary EntryMode = "monetary"
	EntryBoolean  EntryMode = "boolean"
)

const (
	PeriodActive PeriodStatus = "active"
	PeriodClosed PeriodStatus = "closed"
)

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
)

const (
	ContextGeneral = "general"
	ContextSport   = "sport"
)

type (
	EntryMode     string
	PeriodStatus  string
	PaymentStatus string

	Date struct {
		time.Time
	}

	Member struct {
		ID     int64    `json:"id"`
		Name   string   `json:"name"`
		Active bool     `json:"active"`
		Groups []string `json:"groups,omitempty"` // sub-team flags
	}

	ContributionType struct {
		ID            int64     `json:"id"`
		Name          string    `json:"name"`
		DefaultAmount *Money    `json:"default_amount"` // nil: no standard amount
		Mandatory     bool      `json:"mandatory"`
		EntryMode     EntryMode `json:"entry_mode"`
	}

	AmountOverride struct {
		ID        int64     `json:"id"`
		MemberID  int64     `json:"member_id"`
		TypeID    int64     `json:"type_id"`
		PeriodID  int64     `json:"period_id"`
		Amount    Money     `json:"amount"`
		Active    bool      `json:"active"`
		CreatedAt time.Time `json:"created_at"`
	}

	FiscalPeriod struct {
		ID     int64        `json:"id"`
		Name   string       `json:"name"`
		Start  Date         `json:"start"`
		End    Date         `json:"end"`
		Status PeriodStatus `json:"status"`
	}

	Meeting struct {
		ID     int64         `json:"id"`
		Date   Date          `json:"date"`
		Status MeetingStatus `json:"status"`
		Notes  string        `json:"notes,omitempty"`
	}

	Contribution struct {
		ID        int64         `json:"id"`
		MemberID  int64         `json:"member_id"`
		TypeID    int64         `json:"type_id"`
		MeetingID int64         `json:"meeting_id"`
		PeriodID  int64         `json:"period_id"`
		Amount    Money         `json:"amount"`
		PaidOn    Date          `json:"paid_on"`
		Status    PaymentStatus `json:"status"`
		UpdatedAt time.Time     `json:"updated_at"`
	}

	Sanction struct {
		ID       int64         `json:"id"`
		MemberID int64         `json:"member_id"`
		Amount   Money         `json:"amount"`
		Status   PaymentStatus `json:"status"`
		Context  string        `json:"context"`
		Reason   string        `json:"reason,omitempty"`
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidEntryMode = errors.New("invalid entry mode")
	ErrInvalidPeriod    = errors.New("period end must not be before start")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO calendar date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// DateOf truncates a timestamp to its calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON shadows time.Time's so dates travel as "2006-01-02".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// InGroup reports whether the member carries the given group flag.
func (m Member) InGroup(group string) bool {
	for _, g := range m.Groups {
		if strings.EqualFold(g, group) {
			return true
		}
	}
	return false
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t ContributionType) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	switch t.EntryMode {
	case EntryMonetary, EntryBoolean:
	default:
		return ErrInvalidEntryMode
	}
	return nil
}

// Contains reports whether the date falls inside the period, bounds included.
func (p FiscalPeriod) Contains(d Date) bool {
	return !d.Before(p.Start.Time) && !d.After(p.End.Time)
}

func (p FiscalPeriod) Validate() error {
	if err := p.Start.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if err := p.End.Validate(); err != nil {
		return errors.New("invalid end date: " + err.Error())
	}
	if p.End.Before(p.Start.Time) {
		return ErrInvalidPeriod
	}
	return nil
}

// PeriodFor picks the fiscal period containing date. Active periods win over
// closed ones, then the latest start date. ok is false when none matches.
func PeriodFor(periods []FiscalPeriod, date Date) (FiscalPeriod, bool) {
	var (
		best  FiscalPeriod
		found bool
	)
	for _, p := range periods {
		if !p.Contains(date) {
			continue
		}
		if !found {
			best, found = p, true
			continue
		}
		if (p.Status == PeriodActive) != (best.Status == PeriodActive) {
			if p.Status == PeriodActive {
				best = p
			}
			continue
		}
		if p.Start.After(best.Start.Time) {
			best = p
		}
	}
	return best, found
}

// Outstanding reports whether the sanction still weighs on a payout.
func (s Sanction) Outstanding() bool {
	return s.Status == PaymentUnpaid || s.Status == PaymentPartial
}

package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SettlementStatus is the three-way classification of expected against paid.
type SettlementStatus string

const (
	StatusSolde   SettlementStatus = "solde"
	StatusPartiel SettlementStatus = "partiel"
	StatusImpaye  SettlementStatus = "impaye"
)

func ParseSettlementStatus(s string) (SettlementStatus, error) {
	switch st := SettlementStatus(s); st {
	case StatusSolde, StatusPartiel, StatusImpaye:
		return st, nil
	default:
		return "", fmt.Errorf("unknown settlement status %q", s)
	}
}

// Classify maps an (expected, paid) pair to exactly one status.
// A zero expectation is never settled.
func Classify(expected, paid Money) SettlementStatus {
	remaining := expected.Sub(paid)
	switch {
	case remaining == 0 && expected > 0:
		return StatusSolde
	case paid > 0 && remaining > 0:
		return StatusPartiel
	default:
		return StatusImpaye
	}
}

// Settlement is the derived state of one (member, type, scope) triple.
type Settlement struct {
	Expected   Money            `json:"expected"`
	Paid       Money            `json:"paid"`
	Remaining  Money            `json:"remaining"`
	Surplus    Money            `json:"surplus"`
	Status     SettlementStatus `json:"status"`
	Applicable bool             `json:"applicable"`
}

// Settle derives remaining, surplus and status from expected and paid.
func Settle(expected, paid Money) Settlement {
	return Settlement{
		Expected:   expected,
		Paid:       paid,
		Remaining:  expected.Sub(paid),
		Surplus:    paid.Sub(expected),
		Status:     Classify(expected, paid),
		Applicable: expected > 0,
	}
}

const (
	PayoutPercentage PayoutMode = "percentage"
	PayoutFixed      PayoutMode = "fixed"
)

type PayoutMode string

// BeneficiaryConfig decides how a beneficiary's gross amount is derived.
type BeneficiaryConfig struct {
	Mode        PayoutMode      `json:"mode"`
	Percentage  decimal.Decimal `json:"percentage"` // of paid contributions, used in percentage mode
	FixedAmount Money           `json:"fixed_amount"`
}

// DefaultBeneficiaryConfig pays out 100% of what was contributed.
func DefaultBeneficiaryConfig() BeneficiaryConfig {
	return BeneficiaryConfig{Mode: PayoutPercentage, Percentage: decimal.NewFromInt(100)}
}

func (c BeneficiaryConfig) Validate() error {
	switch c.Mode {
	case PayoutPercentage:
		if c.Percentage.IsNegative() {
			return fmt.Errorf("beneficiary percentage must not be negative: %s", c.Percentage)
		}
	case PayoutFixed:
		if err := c.FixedAmount.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown payout mode %q", c.Mode)
	}
	return nil
}

// Gross applies the configuration to a paid total. Fractions are truncated.
func (c BeneficiaryConfig) Gross(paid Money) Money {
	if c.Mode == PayoutFixed {
		return c.FixedAmount
	}
	pct := c.Percentage
	if pct.IsZero() && c.Mode == "" {
		pct = decimal.NewFromInt(100)
	}
	return Money(decimal.NewFromInt(int64(paid)).Mul(pct).Div(decimal.NewFromInt(100)).IntPart())
}

// NetPayout is what a beneficiary receives once deductions are applied.
// Complete is false when an input could not be fetched; the figures are
// then zeroed and must not be shown as a legitimate payout.
type NetPayout struct {
	MemberID                int64           `json:"member_id"`
	PeriodID                int64           `json:"period_id"`
	PaidTotal               Money           `json:"paid_total"`
	Gross                   Money           `json:"gross"`
	SanctionDeduction       Money           `json:"sanction_deduction"`
	SportFundDeduction      Money           `json:"sport_fund_deduction"`
	InvestmentFundDeduction Money           `json:"investment_fund_deduction"`
	TotalDeduction          Money           `json:"total_deduction"`
	Net                     Money           `json:"net"`
	DeductionPercentage     decimal.Decimal `json:"deduction_percentage"`
	Complete                bool            `json:"complete"`
}

// SummaryLine is one contribution type within a member summary.
type SummaryLine struct {
	TypeID   int64  `json:"type_id"`
	TypeName string `json:"type_name"`
	Settlement
}

// MemberSummary is the period-wide view of one member.
type MemberSummary struct {
	MemberID      int64            `json:"member_id"`
	MemberName    string           `json:"member_name"`
	Lines         []SummaryLine    `json:"lines"`
	ExpectedTotal Money            `json:"expected_total"`
	PaidTotal     Money            `json:"paid_total"`
	Remaining     Money            `json:"remaining"`
	Status        SettlementStatus `json:"status"`
}

// MeetingViewMode tells the presentation layer which grid to render.
type MeetingViewMode string

const (
	ViewEntry       MeetingViewMode = "entry"
	ViewComparative MeetingViewMode = "comparative"
)

// MeetingCell is one (member, type) cell of a meeting grid.
type MeetingCell struct {
	MemberID       int64 `json:"member_id"`
	TypeID         int64 `json:"type_id"`
	ContributionID int64 `json:"contribution_id,omitempty"`
	Settlement
}

// MeetingView is the per-meeting grid for a meeting.
type MeetingView struct {
	Meeting  Meeting         `json:"meeting"`
	PeriodID int64           `json:"period_id"`
	Mode     MeetingViewMode `json:"mode"`
	Editable bool            `json:"editable"`
	Cells    []MeetingCell   `json:"cells"`
}

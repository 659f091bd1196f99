package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tontine/internal/core"
	applog "tontine/internal/log"
	"tontine/internal/storage/memory"
)

func payoutSeed(sanctions ...core.Sanction) core.Seed {
	return core.Seed{
		Members: []core.Member{{ID: 1, Name: "Awa", Active: true}},
		Types:   []core.ContributionType{{ID: 1, Name: "Tontine", DefaultAmount: core.Money(50000).Ptr(), Mandatory: true, EntryMode: core.EntryMonetary}},
		Periods: []core.FiscalPeriod{{ID: 1, Name: "2024", Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 12, 31), Status: core.PeriodActive}},
		Meetings: []core.Meeting{
			{ID: 1, Date: core.NewDate(2024, 1, 6), Status: core.MeetingClosed},
			{ID: 2, Date: core.NewDate(2024, 2, 3), Status: core.MeetingClosed},
			{ID: 3, Date: core.NewDate(2024, 3, 2), Status: core.MeetingCancelled},
		},
		Contributions: []core.Contribution{
			{ID: 1, MemberID: 1, TypeID: 1, MeetingID: 1, PeriodID: 1, Amount: 50000, Status: core.PaymentPaid},
			{ID: 2, MemberID: 1, TypeID: 1, MeetingID: 2, PeriodID: 1, Amount: 50000, Status: core.PaymentPaid},
			{ID: 3, MemberID: 1, TypeID: 1, MeetingID: 3, PeriodID: 1, Amount: 50000, Status: core.PaymentPaid},
		},
		Sanctions: sanctions,
	}
}

func newTestPayout(t *testing.T, seed core.Seed) (*PayoutCalculator, *memory.Store) {
	t.Helper()
	store, err := memory.NewFromSeed(seed)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	ledger := NewLedgerService(store, nil, applog.Discard())
	return NewPayoutCalculator(ledger, store, "", applog.Discard()), store
}

func TestComputeNetPayout(t *testing.T) {
	calc, _ := newTestPayout(t, payoutSeed(
		core.Sanction{ID: 1, MemberID: 1, Amount: 10000, Status: core.PaymentUnpaid, Context: core.ContextGeneral},
		core.Sanction{ID: 2, MemberID: 1, Amount: 5000, Status: core.PaymentPartial, Context: core.ContextGeneral},
		core.Sanction{ID: 3, MemberID: 1, Amount: 7000, Status: core.PaymentPaid, Context: core.ContextGeneral},
		core.Sanction{ID: 4, MemberID: 2, Amount: 9000, Status: core.PaymentUnpaid, Context: core.ContextGeneral},
	))

	got, err := calc.ComputeNetPayout(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	want := core.NetPayout{
		MemberID:          1,
		PeriodID:          1,
		PaidTotal:         100000,
		Gross:             100000,
		SanctionDeduction: 15000,
		TotalDeduction:    15000,
		Net:               85000,
		Complete:          true,
	}
	if !got.DeductionPercentage.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("deduction percentage = %s", got.DeductionPercentage)
	}
	got.DeductionPercentage = decimal.Decimal{}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestComputeNetPayout_SportDeductionIsInformational(t *testing.T) {
	calc, _ := newTestPayout(t, payoutSeed(
		core.Sanction{ID: 1, MemberID: 1, Amount: 10000, Status: core.PaymentUnpaid, Context: core.ContextGeneral},
		core.Sanction{ID: 2, MemberID: 1, Amount: 5000, Status: core.PaymentUnpaid, Context: "Sport"},
	))

	got, err := calc.ComputeNetPayout(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if got.SanctionDeduction != 15000 || got.SportFundDeduction != 5000 {
		t.Fatalf("deductions = %+v", got)
	}
	if got.TotalDeduction != 15000 || got.Net != 85000 {
		t.Fatalf("sport sanctions deducted twice: total=%d net=%d", got.TotalDeduction, got.Net)
	}
}

func TestComputeNetPayoutBeneficiaryModes(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *core.BeneficiaryConfig
		wantGross core.Money
		wantNet   core.Money
		wantPct   string
	}{
		{"default is full contributions", nil, 100000, 90000, "10"},
		{"percentage", &core.BeneficiaryConfig{Mode: core.PayoutPercentage, Percentage: decimal.NewFromInt(80)}, 80000, 70000, "12.5"},
		{"fixed", &core.BeneficiaryConfig{Mode: core.PayoutFixed, FixedAmount: 30000}, 30000, 20000, "33.33"},
		{"deductions above gross", &core.BeneficiaryConfig{Mode: core.PayoutFixed, FixedAmount: 4000}, 4000, 0, "250"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed := payoutSeed(core.Sanction{ID: 1, MemberID: 1, Amount: 10000, Status: core.PaymentUnpaid, Context: core.ContextGeneral})
			seed.Beneficiary = tt.cfg
			calc, _ := newTestPayout(t, seed)

			got, err := calc.ComputeNetPayout(context.Background(), 1, 1)
			if err != nil {
				t.Fatalf("payout: %v", err)
			}
			if got.Gross != tt.wantGross || got.Net != tt.wantNet || got.DeductionPercentage.String() != tt.wantPct {
				t.Fatalf("got gross=%d net=%d pct=%s", got.Gross, got.Net, got.DeductionPercentage)
			}
		})
	}
}

func TestComputeNetPayoutNoContributions(t *testing.T) {
	seed := payoutSeed()
	seed.Members = append(seed.Members, core.Member{ID: 42, Name: "Khady", Active: true})
	calc, _ := newTestPayout(t, seed)
	got, err := calc.ComputeNetPayout(context.Background(), 42, 1)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if !got.Complete || got.Gross != 0 || !got.DeductionPercentage.IsZero() {
		t.Fatalf("legitimate zero payout = %+v", got)
	}
}

type failingSanctions struct {
	*memory.Store
}

func (failingSanctions) ListSanctions(context.Context, int64) ([]core.Sanction, error) {
	return nil, errBoom
}

func TestComputeNetPayoutFailureIsFlagged(t *testing.T) {
	store, err := memory.NewFromSeed(payoutSeed())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	ledger := NewLedgerService(store, nil, applog.Discard())

	t.Run("sanctions unavailable", func(t *testing.T) {
		calc := NewPayoutCalculator(ledger, failingSanctions{store}, "", applog.Discard())
		got, err := calc.ComputeNetPayout(context.Background(), 1, 1)
		if !errors.Is(err, core.ErrPayoutUnavailable) || !errors.Is(err, errBoom) {
			t.Fatalf("err = %v", err)
		}
		if got.Complete || got.Net != 0 || got.Gross != 0 {
			t.Fatalf("failed payout must be flagged and zeroed: %+v", got)
		}
	})

	t.Run("unknown member", func(t *testing.T) {
		calc := NewPayoutCalculator(ledger, store, "", applog.Discard())
		got, err := calc.ComputeNetPayout(context.Background(), 9999, 1)
		if !errors.Is(err, core.ErrPayoutUnavailable) || !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
		if got.Complete || got.Net != 0 {
			t.Fatalf("unknown member must not yield a clean zero: %+v", got)
		}
	})

	t.Run("unknown period", func(t *testing.T) {
		calc := NewPayoutCalculator(ledger, store, "", applog.Discard())
		got, err := calc.ComputeNetPayout(context.Background(), 1, 99)
		if !errors.Is(err, core.ErrPayoutUnavailable) || !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
		if got.Complete {
			t.Fatal("expected incomplete payout")
		}
	})
}

func TestDeductionPercentage(t *testing.T) {
	tests := []struct {
		deduction, gross core.Money
		want             string
	}{
		{15000, 100000, "15"},
		{1, 3, "33.33"},
		{2, 3, "66.67"},
		{5, 0, "0"},
	}
	for _, tt := range tests {
		if got := DeductionPercentage(tt.deduction, tt.gross).String(); got != tt.want {
			t.Fatalf("DeductionPercentage(%d, %d) = %s, want %s", tt.deduction, tt.gross, got, tt.want)
		}
	}
}

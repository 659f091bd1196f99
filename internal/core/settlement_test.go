package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		expected Money
		paid     Money
		want     SettlementStatus
	}{
		{"nothing paid", 10000, 0, StatusImpaye},
		{"partly paid", 10000, 4000, StatusPartiel},
		{"exactly paid", 10000, 10000, StatusSolde},
		{"overpaid", 10000, 12000, StatusSolde},
		{"zero expected nothing paid", 0, 0, StatusImpaye},
		{"zero expected something paid", 0, 500, StatusImpaye},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.expected, tt.paid); got != tt.want {
				t.Fatalf("Classify(%d, %d) = %s, want %s", tt.expected, tt.paid, got, tt.want)
			}
		})
	}
}

func TestClassifyIsExhaustive(t *testing.T) {
	amounts := []Money{0, 1, 4000, 9999, 10000, 10001, 50000}
	for _, e := range amounts {
		for _, p := range amounts {
			s := Settle(e, p)
			n := 0
			for _, st := range []SettlementStatus{StatusSolde, StatusPartiel, StatusImpaye} {
				if s.Status == st {
					n++
				}
			}
			if n != 1 {
				t.Fatalf("(%d,%d) classified as %q", e, p, s.Status)
			}
			if s.Remaining < 0 {
				t.Fatalf("(%d,%d) negative remaining %d", e, p, s.Remaining)
			}
		}
	}
}

func TestSettleSurplusAndApplicability(t *testing.T) {
	s := Settle(10000, 12500)
	if s.Remaining != 0 || s.Surplus != 2500 || !s.Applicable {
		t.Fatalf("unexpected settlement %+v", s)
	}
	z := Settle(0, 0)
	if z.Applicable {
		t.Fatalf("zero expectation must be flagged not applicable")
	}
}

func TestBeneficiaryGross(t *testing.T) {
	tests := []struct {
		name string
		cfg  BeneficiaryConfig
		paid Money
		want Money
	}{
		{"default full", DefaultBeneficiaryConfig(), 100000, 100000},
		{"zero value config", BeneficiaryConfig{}, 100000, 100000},
		{"ninety percent", BeneficiaryConfig{Mode: PayoutPercentage, Percentage: decimal.NewFromInt(90)}, 100000, 90000},
		{"truncates", BeneficiaryConfig{Mode: PayoutPercentage, Percentage: decimal.RequireFromString("33.3")}, 1000, 333},
		{"fixed", BeneficiaryConfig{Mode: PayoutFixed, FixedAmount: 75000}, 100000, 75000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Gross(tt.paid); got != tt.want {
				t.Fatalf("Gross(%d) = %d, want %d", tt.paid, got, tt.want)
			}
		})
	}
}

func TestBeneficiaryConfigValidate(t *testing.T) {
	if err := DefaultBeneficiaryConfig().Validate(); err != nil {
		t.Fatalf("default must validate: %v", err)
	}
	if err := (BeneficiaryConfig{Mode: "lottery"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if err := (BeneficiaryConfig{Mode: PayoutPercentage, Percentage: decimal.NewFromInt(-5)}).Validate(); err == nil {
		t.Fatalf("expected error for negative percentage")
	}
}

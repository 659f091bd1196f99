package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tontine/internal/core"
	applog "tontine/internal/log"
	"tontine/internal/ports"
)

type payoutStore interface {
	ports.MemberDirectory
	ports.ConfigReader
	ports.SanctionReader
}

// PayoutCalculator computes what a rotating beneficiary receives.
type PayoutCalculator struct {
	ledger   *LedgerService
	store    payoutStore
	sportTag string
	logger   *applog.Logger
}

func NewPayoutCalculator(ledger *LedgerService, store payoutStore, sportTag string, logger *applog.Logger) *PayoutCalculator {
	if logger == nil {
		logger = applog.Default()
	}
	if strings.TrimSpace(sportTag) == "" {
		sportTag = core.ContextSport
	}
	return &PayoutCalculator{
		ledger:   ledger,
		store:    store,
		sportTag: sportTag,
		logger:   logger.WithComponent(applog.ComponentPayout),
	}
}

// ComputeNetPayout derives gross, deductions and net for a member over a
// period. An unknown member or period is a fetch failure. On any fetch failure the result is zeroed with Complete false and
// the error wraps core.ErrPayoutUnavailable.
//
// The sport-context sum is a subset of the sanction sum and is reported for
// information only; it is not deducted a second time.
func (c *PayoutCalculator) ComputeNetPayout(ctx context.Context, memberID, periodID int64) (core.NetPayout, error) {
	result := core.NetPayout{MemberID: memberID, PeriodID: periodID, DeductionPercentage: decimal.Zero}

	var (
		paid      core.Money
		sanctions []core.Sanction
		cfg       core.BeneficiaryConfig
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := c.store.GetMember(gctx, memberID); err != nil {
			return fmt.Errorf("member: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		paid, err = c.ledger.MemberPaidTotal(gctx, memberID, PeriodScope(periodID))
		if err != nil {
			return fmt.Errorf("paid total: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		sanctions, err = c.store.ListSanctions(gctx, memberID)
		if err != nil {
			return fmt.Errorf("list sanctions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cfg, err = c.store.GetBeneficiaryConfig(gctx)
		if errors.Is(err, core.ErrNotFound) {
			cfg, err = core.DefaultBeneficiaryConfig(), nil
		}
		if err != nil {
			return fmt.Errorf("beneficiary config: %w", err)
		}
		return cfg.Validate()
	})
	if err := g.Wait(); err != nil {
		c.logger.LogError(ctx, "Payout unavailable", err, applog.OpPayout,
			applog.NewFields().WithPeriod(periodID))
		return result, fmt.Errorf("%w: %w", core.ErrPayoutUnavailable, err)
	}

	var sanctionSum, sportSum core.Money
	for _, s := range sanctions {
		if !s.Outstanding() {
			continue
		}
		sanctionSum += s.Amount
		if strings.EqualFold(s.Context, c.sportTag) {
			sportSum += s.Amount
		}
	}

	result.PaidTotal = paid
	result.Gross = cfg.Gross(paid)
	result.SanctionDeduction = sanctionSum
	result.SportFundDeduction = sportSum
	result.InvestmentFundDeduction = 0
	result.TotalDeduction = result.SanctionDeduction + result.InvestmentFundDeduction
	result.Net = result.Gross.Sub(result.TotalDeduction)
	result.DeductionPercentage = DeductionPercentage(result.TotalDeduction, result.Gross)
	result.Complete = true

	c.logger.InfoContext(ctx, "Net payout computed",
		applog.FieldMemberID, memberID,
		applog.FieldPeriodID, periodID,
		applog.FieldOperation, applog.OpPayout,
		"gross", int64(result.Gross),
		"net", int64(result.Net))
	return result, nil
}

// DeductionPercentage is deduction / gross * 100 rounded to two places, zero
// when gross is zero.
func DeductionPercentage(deduction, gross core.Money) decimal.Decimal {
	if gross <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(deduction)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(gross))).
		Round(2)
}

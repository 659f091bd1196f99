package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"tontine/internal/cache"
	"tontine/internal/core"
	applog "tontine/internal/log"
	"tontine/internal/ports"
)

// AggregateMode selects the projection applied to expected amounts.
type AggregateMode string

const (
	ModeAnnual  AggregateMode = "annual"
	ModeMeeting AggregateMode = "meeting"
)

const DefaultAnnualMultiplier = 12

func ParseAggregateMode(s string) (AggregateMode, error) {
	switch m := AggregateMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAnnual, nil
	case ModeAnnual, ModeMeeting:
		return m, nil
	default:
		return "", fmt.Errorf("unknown aggregate mode %q", s)
	}
}

// AggregateOptions are pure filters except Mode. TypeID and Group narrow the
// computed set; Status is applied after classification.
type AggregateOptions struct {
	Mode   AggregateMode
	TypeID int64
	Status core.SettlementStatus
	Group  string
}

func (o AggregateOptions) key(periodID int64) string {
	mode := o.Mode
	if mode == "" {
		mode = ModeAnnual
	}
	return fmt.Sprintf("period:%d:%s:%d:%s", periodID, mode, o.TypeID, strings.ToLower(o.Group))
}

type aggregatorStore interface {
	ports.MemberDirectory
	ports.ConfigReader
	ports.MeetingStore
	ports.ContributionStore
}

// AnnualAggregator re-scopes the ledger from single meetings to whole fiscal
// periods. Results are cached until the next ledger change for the period.
type AnnualAggregator struct {
	store      aggregatorStore
	multiplier int
	cache      *cache.LRUCache[[]core.MemberSummary]
	group      singleflight.Group
	logger     *applog.Logger
}

// AggregatorOption configures an AnnualAggregator.
type AggregatorOption func(*AnnualAggregator)

// WithMultiplier overrides the annual projection factor.
func WithMultiplier(n int) AggregatorOption {
	return func(a *AnnualAggregator) {
		if n > 0 {
			a.multiplier = n
		}
	}
}

// WithSummaryCache sets the size and TTL of the summary cache.
func WithSummaryCache(size int, ttl time.Duration) AggregatorOption {
	return func(a *AnnualAggregator) {
		a.cache = cache.NewLRUCache[[]core.MemberSummary](size, ttl)
	}
}

func NewAnnualAggregator(store aggregatorStore, logger *applog.Logger, opts ...AggregatorOption) *AnnualAggregator {
	if logger == nil {
		logger = applog.Default()
	}
	a := &AnnualAggregator{
		store:      store,
		multiplier: DefaultAnnualMultiplier,
		cache:      cache.NewLRUCache[[]core.MemberSummary](64, 10*time.Minute),
		logger:     logger.WithComponent(applog.ComponentAggregator),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Cache exposes the summary cache so it can join a cache.Manager sweep.
func (a *AnnualAggregator) Cache() *cache.LRUCache[[]core.MemberSummary] {
	return a.cache
}

// Invalidate drops every cached summary of the period, or all of them when
// periodID is zero.
func (a *AnnualAggregator) Invalidate(ctx context.Context, periodID int64) {
	if periodID == 0 {
		a.cache.Purge()
		a.logger.DebugContext(ctx, "Summary cache purged")
		return
	}
	prefix := fmt.Sprintf("period:%d:", periodID)
	n := a.cache.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, prefix) })
	a.logger.DebugContext(ctx, "Summary cache invalidated",
		applog.FieldPeriodID, periodID,
		"removed", n)
}

func (a *AnnualAggregator) factor(mode AggregateMode) (int, error) {
	switch mode {
	case "", ModeAnnual:
		return a.multiplier, nil
	case ModeMeeting:
		return 1, nil
	default:
		return 0, fmt.Errorf("unknown aggregate mode %q", mode)
	}
}

// Aggregate returns one summary per member for the period, sorted by name.
func (a *AnnualAggregator) Aggregate(ctx context.Context, periodID int64, opts AggregateOptions) ([]core.MemberSummary, error) {
	if _, err := a.factor(opts.Mode); err != nil {
		return nil, err
	}
	key := opts.key(periodID)

	summaries, ok := a.cache.Get(key)
	if !ok {
		v, err, _ := a.group.Do(key, func() (any, error) {
			if cached, ok := a.cache.Get(key); ok {
				return cached, nil
			}
			gen := a.cache.Generation()
			computed, err := a.compute(ctx, periodID, opts)
			if err != nil {
				return nil, err
			}
			if !a.cache.SetIf(key, computed, gen) {
				a.logger.DebugContext(ctx, "Summary discarded after concurrent ledger change",
					applog.FieldPeriodID, periodID)
			}
			return computed, nil
		})
		if err != nil {
			return nil, err
		}
		summaries = v.([]core.MemberSummary)
	}

	// Cached summaries are shared; callers get their own copies.
	out := make([]core.MemberSummary, 0, len(summaries))
	for _, s := range summaries {
		if opts.Status != "" && s.Status != opts.Status {
			continue
		}
		s.Lines = slices.Clone(s.Lines)
		out = append(out, s)
	}
	return out, nil
}

func (a *AnnualAggregator) compute(ctx context.Context, periodID int64, opts AggregateOptions) ([]core.MemberSummary, error) {
	start := time.Now()
	factor, _ := a.factor(opts.Mode)

	period, err := a.store.GetFiscalPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("get fiscal period: %w", err)
	}
	members, err := a.store.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	types, err := a.store.ListContributionTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contribution types: %w", err)
	}
	overrides, err := a.store.ListOverrides(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	resolver := NewAmountResolver(overrides)

	counted, err := countedMeetings(ctx, a.store, a.store, period)
	if err != nil {
		return nil, err
	}
	rows, err := a.store.ListContributions(ctx, ports.ContributionFilter{})
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}

	type pair struct{ member, ctype int64 }
	paid := make(map[pair]core.Money)
	hasPayment := make(map[pair]bool)
	for _, c := range rows {
		if _, ok := counted[c.MeetingID]; !ok || c.Status != core.PaymentPaid {
			continue
		}
		k := pair{c.MemberID, c.TypeID}
		paid[k] += c.Amount
		hasPayment[k] = true
	}

	var out []core.MemberSummary
	for _, m := range members {
		if opts.Group != "" && !m.InGroup(opts.Group) {
			continue
		}
		summary := core.MemberSummary{MemberID: m.ID, MemberName: m.Name}
		for _, t := range types {
			if opts.TypeID != 0 && t.ID != opts.TypeID {
				continue
			}
			k := pair{m.ID, t.ID}
			if !m.Active && !hasPayment[k] {
				continue
			}
			if !t.Mandatory && !hasPayment[k] && !resolver.HasOverride(m.ID, t.ID, periodID) {
				continue
			}
			line := core.SummaryLine{
				TypeID:     t.ID,
				TypeName:   t.Name,
				Settlement: core.Settle(resolver.Resolve(m.ID, t, periodID).Times(factor), paid[k]),
			}
			summary.Lines = append(summary.Lines, line)
			summary.ExpectedTotal += line.Expected
			summary.PaidTotal += line.Paid
		}
		if len(summary.Lines) == 0 {
			continue
		}
		summary.Remaining = summary.ExpectedTotal.Sub(summary.PaidTotal)
		summary.Status = core.Classify(summary.ExpectedTotal, summary.PaidTotal)
		out = append(out, summary)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MemberName != out[j].MemberName {
			return out[i].MemberName < out[j].MemberName
		}
		return out[i].MemberID < out[j].MemberID
	})

	a.logger.DebugContext(ctx, "Period aggregated",
		applog.FieldPeriodID, periodID,
		applog.FieldOperation, applog.OpAggregate,
		"members", len(out),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return out, nil
}

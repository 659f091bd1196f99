package backend

import (
	"time"

	"tontine/internal/config"
	applog "tontine/internal/log"
	"tontine/internal/ports"
	"tontine/internal/services"
)

// Engine is the set of services every binary wires over a backend store.
type Engine struct {
	Ledger    *services.LedgerService
	Meetings  *services.MeetingService
	Summaries *services.AnnualAggregator
	Payouts   *services.PayoutCalculator
}

type EngineOptions struct {
	Rules config.Rules
	// Publisher may be nil; ledger events are then only logged.
	Publisher ports.EventPublisher
	CacheSize int
	CacheTTL  time.Duration
	Logger    *applog.Logger
}

// NewEngine wires the services and subscribes the aggregator cache to ledger
// changes.
func NewEngine(store ports.Store, opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Default()
	}

	aggOpts := []services.AggregatorOption{services.WithMultiplier(opts.Rules.Aggregation.AnnualMultiplier)}
	if opts.CacheSize > 0 && opts.CacheTTL > 0 {
		aggOpts = append(aggOpts, services.WithSummaryCache(opts.CacheSize, opts.CacheTTL))
	}

	ledger := services.NewLedgerService(store, opts.Publisher, logger)
	summaries := services.NewAnnualAggregator(store, logger, aggOpts...)
	ledger.OnChange(summaries)

	return &Engine{
		Ledger:    ledger,
		Meetings:  services.NewMeetingService(store, ledger, services.NewRoleAuthorizer(opts.Rules.Lifecycle.ReopenRoles...), logger),
		Summaries: summaries,
		Payouts:   services.NewPayoutCalculator(ledger, store, opts.Rules.Payout.SportTag, logger),
	}
}

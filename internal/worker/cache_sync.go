package worker

import (
	"context"

	"tontine/internal/amqp"
	applog "tontine/internal/log"
	"tontine/internal/ports"
)

// CacheSync drops cached views when another process changed the ledger, so
// writes made through the admin tool show up without waiting for the TTL.
type CacheSync struct {
	invalidators []ports.Invalidator
	logger       *applog.Logger
}

func NewCacheSync(logger *applog.Logger, invalidators ...ports.Invalidator) *CacheSync {
	if logger == nil {
		logger = applog.Default()
	}
	return &CacheSync{invalidators: invalidators, logger: logger.WithComponent(applog.ComponentCache)}
}

// HandleLedgerEvent invalidates the event's period, or everything for a
// reload or an event without a period. It never fails, so nothing is requeued.
func (s *CacheSync) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	for _, inv := range s.invalidators {
		inv.Invalidate(ctx, msg.PeriodID)
	}
	s.logger.DebugContext(ctx, "Cached views invalidated by ledger event",
		"event_id", msg.EventID,
		"kind", msg.Kind,
		applog.FieldPeriodID, msg.PeriodID)
	return nil
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tontine/internal/amqp"
	"tontine/internal/core"
	applog "tontine/internal/log"
	"tontine/internal/services"
)

// SummaryExporter writes a period summary somewhere people can read it and
// returns a reference to what was written (a sheet range, a file name).
type SummaryExporter interface {
	ExportPeriodSummary(ctx context.Context, period core.FiscalPeriod, rows []core.MemberSummary) (string, error)
}

type summarySource interface {
	Aggregate(ctx context.Context, periodID int64, opts services.AggregateOptions) ([]core.MemberSummary, error)
	Invalidate(ctx context.Context, periodID int64)
}

type periodReader interface {
	GetFiscalPeriod(ctx context.Context, id int64) (core.FiscalPeriod, error)
	ListFiscalPeriods(ctx context.Context) ([]core.FiscalPeriod, error)
}

// ReportWorker keeps exported period summaries in step with the ledger.
type ReportWorker struct {
	summaries summarySource
	periods   periodReader
	exporter  SummaryExporter
	logger    *applog.Logger

	mu         sync.Mutex
	lastExport map[int64]time.Time
	now        func() time.Time
}

func NewReportWorker(summaries summarySource, periods periodReader, exporter SummaryExporter, logger *applog.Logger) *ReportWorker {
	if logger == nil {
		logger = applog.Default()
	}
	return &ReportWorker{
		summaries:  summaries,
		periods:    periods,
		exporter:   exporter,
		logger:     logger.WithComponent(applog.ComponentWorker),
		lastExport: make(map[int64]time.Time),
		now:        time.Now,
	}
}

// HandleLedgerEvent re-exports the summary of the period the event touched.
// A reload re-exports every active period.
// Events older than the last export of their period are acknowledged
// without work: that export already saw them.
func (w *ReportWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		"event_id", msg.EventID,
		"kind", msg.Kind,
		applog.FieldPeriodID, msg.PeriodID,
		applog.FieldMeetingID, msg.MeetingID)

	if msg.Kind == core.EventLedgerReloaded {
		w.summaries.Invalidate(ctx, 0)
		return w.StartupExport(ctx)
	}
	if msg.PeriodID == 0 {
		w.logger.WarnContext(ctx, "Ledger event without period, skipping", "event_id", msg.EventID)
		return nil
	}
	if last, ok := w.exportedAt(msg.PeriodID); ok && msg.Timestamp.Before(last) {
		w.logger.DebugContext(ctx, "Ledger event already covered by a later export",
			"event_id", msg.EventID,
			"exported_at", last)
		return nil
	}

	period, err := w.periods.GetFiscalPeriod(ctx, msg.PeriodID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Ledger event for unknown period, skipping",
			"event_id", msg.EventID,
			applog.FieldPeriodID, msg.PeriodID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get fiscal period: %w", err)
	}

	w.summaries.Invalidate(ctx, period.ID)
	return w.ExportPeriod(ctx, period)
}

// ExportPeriod recomputes the annual summary of period and hands it to the exporter.
func (w *ReportWorker) ExportPeriod(ctx context.Context, period core.FiscalPeriod) error {
	started := w.now()
	rows, err := w.summaries.Aggregate(ctx, period.ID, services.AggregateOptions{Mode: services.ModeAnnual})
	if err != nil {
		return fmt.Errorf("aggregate period %d: %w", period.ID, err)
	}

	ref, err := w.exporter.ExportPeriodSummary(ctx, period, rows)
	if err != nil {
		w.logger.LogError(ctx, "Failed to export period summary", err, applog.OpExport,
			applog.NewFields().WithPeriod(period.ID))
		return fmt.Errorf("export period %d: %w", period.ID, err)
	}

	w.mu.Lock()
	w.lastExport[period.ID] = started
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Exported period summary",
		applog.FieldPeriodID, period.ID,
		"period", period.Name,
		"members", len(rows),
		"ref", ref)
	return nil
}

// StartupExport exports every active period. It recovers from events missed
// while the worker was down; failures are counted, not fatal.
func (w *ReportWorker) StartupExport(ctx context.Context) error {
	periods, err := w.periods.ListFiscalPeriods(ctx)
	if err != nil {
		return fmt.Errorf("list fiscal periods: %w", err)
	}

	var exported, failed int
	for _, p := range periods {
		if p.Status != core.PeriodActive {
			continue
		}
		if err := w.ExportPeriod(ctx, p); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			continue
		}
		exported++
	}

	w.logger.InfoContext(ctx, "Startup export completed",
		"periods", len(periods),
		"exported", exported,
		"errors", failed)
	return nil
}

func (w *ReportWorker) exportedAt(periodID int64) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.lastExport[periodID]
	return t, ok
}

package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"tontine/internal/amqp"
	"tontine/internal/core"
	applog "tontine/internal/log"
	"tontine/internal/services"
)

type fakeSummaries struct {
	rows        []core.MemberSummary
	err         error
	aggregated  []int64
	invalidated []int64
}

func (f *fakeSummaries) Aggregate(_ context.Context, periodID int64, opts services.AggregateOptions) ([]core.MemberSummary, error) {
	if opts.Mode != services.ModeAnnual {
		return nil, errors.New("unexpected mode " + string(opts.Mode))
	}
	f.aggregated = append(f.aggregated, periodID)
	return f.rows, f.err
}

func (f *fakeSummaries) Invalidate(_ context.Context, periodID int64) {
	f.invalidated = append(f.invalidated, periodID)
}

type fakePeriods struct {
	periods []core.FiscalPeriod
	err     error
}

func (f *fakePeriods) GetFiscalPeriod(_ context.Context, id int64) (core.FiscalPeriod, error) {
	if f.err != nil {
		return core.FiscalPeriod{}, f.err
	}
	for _, p := range f.periods {
		if p.ID == id {
			return p, nil
		}
	}
	return core.FiscalPeriod{}, core.NotFound("fiscal period", id)
}

func (f *fakePeriods) ListFiscalPeriods(context.Context) ([]core.FiscalPeriod, error) {
	return f.periods, f.err
}

type fakeExporter struct {
	calls []int64
	rows  int
	err   error
}

func (f *fakeExporter) ExportPeriodSummary(_ context.Context, period core.FiscalPeriod, rows []core.MemberSummary) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, period.ID)
	f.rows = len(rows)
	return period.Name + "!A1", nil
}

func newTestWorker() (*ReportWorker, *fakeSummaries, *fakeExporter) {
	summaries := &fakeSummaries{rows: []core.MemberSummary{{MemberID: 1, MemberName: "Awa"}, {MemberID: 2, MemberName: "Binta"}}}
	periods := &fakePeriods{periods: []core.FiscalPeriod{
		{ID: 100, Name: "2024", Status: core.PeriodActive},
		{ID: 101, Name: "2023", Status: core.PeriodClosed},
		{ID: 102, Name: "2025", Status: core.PeriodActive},
	}}
	exporter := &fakeExporter{}
	return NewReportWorker(summaries, periods, exporter, applog.Discard()), summaries, exporter
}

func TestHandleLedgerEventExportsPeriod(t *testing.T) {
	w, summaries, exporter := newTestWorker()
	msg := amqp.NewLedgerEventMessage(core.LedgerEvent{Kind: core.EventPaymentRecorded, PeriodID: 100, At: time.Now()})

	if err := w.HandleLedgerEvent(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(summaries.invalidated) != 1 || summaries.invalidated[0] != 100 {
		t.Fatalf("invalidated = %v", summaries.invalidated)
	}
	if len(exporter.calls) != 1 || exporter.calls[0] != 100 || exporter.rows != 2 {
		t.Fatalf("exports = %v rows=%d", exporter.calls, exporter.rows)
	}
}

func TestHandleLedgerEventSkips(t *testing.T) {
	tests := []struct {
		name string
		msg  *amqp.LedgerEventMessage
	}{
		{"no period", &amqp.LedgerEventMessage{EventID: "a", Kind: core.EventPaymentDeleted}},
		{"unknown period", &amqp.LedgerEventMessage{EventID: "b", Kind: core.EventPaymentDeleted, PeriodID: 999, Timestamp: time.Now()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _, exporter := newTestWorker()
			if err := w.HandleLedgerEvent(context.Background(), tt.msg); err != nil {
				t.Fatalf("expected skip without error, got %v", err)
			}
			if len(exporter.calls) != 0 {
				t.Fatalf("unexpected export: %v", exporter.calls)
			}
		})
	}
}

func TestHandleLedgerReloadExportsActivePeriods(t *testing.T) {
	w, summaries, exporter := newTestWorker()
	msg := amqp.NewLedgerEventMessage(core.LedgerEvent{Kind: core.EventLedgerReloaded, At: time.Now()})

	if err := w.HandleLedgerEvent(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(summaries.invalidated) != 1 || summaries.invalidated[0] != 0 {
		t.Fatalf("invalidated = %v, want a full purge", summaries.invalidated)
	}
	if len(exporter.calls) != 2 || exporter.calls[0] != 100 || exporter.calls[1] != 102 {
		t.Fatalf("exports = %v", exporter.calls)
	}
}

func TestHandleLedgerEventCoveredByLaterExport(t *testing.T) {
	w, _, exporter := newTestWorker()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base }

	if err := w.ExportPeriod(context.Background(), core.FiscalPeriod{ID: 100, Name: "2024"}); err != nil {
		t.Fatalf("export: %v", err)
	}

	stale := &amqp.LedgerEventMessage{EventID: "old", Kind: core.EventPaymentRecorded, PeriodID: 100, Timestamp: base.Add(-time.Minute)}
	if err := w.HandleLedgerEvent(context.Background(), stale); err != nil {
		t.Fatalf("stale: %v", err)
	}
	if len(exporter.calls) != 1 {
		t.Fatalf("stale event re-exported: %v", exporter.calls)
	}

	fresh := &amqp.LedgerEventMessage{EventID: "new", Kind: core.EventPaymentRecorded, PeriodID: 100, Timestamp: base.Add(time.Minute)}
	if err := w.HandleLedgerEvent(context.Background(), fresh); err != nil {
		t.Fatalf("fresh: %v", err)
	}
	if len(exporter.calls) != 2 {
		t.Fatalf("fresh event not exported: %v", exporter.calls)
	}
}

func TestHandleLedgerEventFailures(t *testing.T) {
	boom := errors.New("boom")

	w, summaries, _ := newTestWorker()
	summaries.err = boom
	msg := &amqp.LedgerEventMessage{Kind: core.EventPaymentRecorded, PeriodID: 100, Timestamp: time.Now()}
	if err := w.HandleLedgerEvent(context.Background(), msg); !errors.Is(err, boom) {
		t.Fatalf("aggregate failure: got %v", err)
	}

	w, _, exporter := newTestWorker()
	exporter.err = boom
	if err := w.HandleLedgerEvent(context.Background(), msg); !errors.Is(err, boom) {
		t.Fatalf("export failure: got %v", err)
	}
	if _, ok := w.exportedAt(100); ok {
		t.Fatal("failed export must not be remembered")
	}

	w = NewReportWorker(&fakeSummaries{}, &fakePeriods{err: boom}, &fakeExporter{}, applog.Discard())
	if err := w.HandleLedgerEvent(context.Background(), msg); !errors.Is(err, boom) {
		t.Fatalf("period failure: got %v", err)
	}
}

func TestStartupExportActivePeriodsOnly(t *testing.T) {
	w, _, exporter := newTestWorker()
	if err := w.StartupExport(context.Background()); err != nil {
		t.Fatalf("startup: %v", err)
	}
	if len(exporter.calls) != 2 || exporter.calls[0] != 100 || exporter.calls[1] != 102 {
		t.Fatalf("exports = %v", exporter.calls)
	}

	w, _, exporter = newTestWorker()
	exporter.err = errors.New("sheets down")
	if err := w.StartupExport(context.Background()); err != nil {
		t.Fatalf("export failures should not abort startup: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"tontine/internal/amqp"
	"tontine/internal/backend"
	"tontine/internal/cli"
	"tontine/internal/config"
	applog "tontine/internal/log"
	gsheet "tontine/internal/sheets/google"
	"tontine/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	rules := cli.LoadRules(logger, cfg)

	logger.Info("Starting tontine-worker")

	backendCfg, err := backend.FromAppConfig(cfg, rules)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer res.Cleanup()

	sheetsClient, err := gsheet.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	consumeCtx, stopConsuming := context.WithCancel(context.Background())
	defer stopConsuming()

	// The broker may come up after the worker in compose setups.
	amqpClient, err := amqp.NewClientWithRetry(consumeCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.ConnectAttempts)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// The worker never writes the ledger, so it publishes nothing.
	engine := backend.NewEngine(res.Store, backend.EngineOptions{
		Rules:     rules,
		CacheSize: cfg.SummaryCacheSize,
		CacheTTL:  cfg.SummaryCacheTTL,
		Logger:    logger,
	})
	reports := worker.NewReportWorker(engine.Summaries, res.Store, sheetsClient, logger)

	ctx, done := cli.GracefulShutdown(consumeCtx, logger, 30*time.Second, func(context.Context) {
		stopConsuming()
	})

	logger.Info("Performing startup export...")
	if err := reports.StartupExport(consumeCtx); err != nil {
		logger.LogError(consumeCtx, "Failed startup export", err, applog.OpStartup, nil)
	}

	go func() {
		if err := amqpClient.ConsumeLedgerEvents(consumeCtx, reports.HandleLedgerEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
		stopConsuming()
	}()

	// Periodic re-export covers events lost while the broker was unreachable.
	go func() {
		ticker := time.NewTicker(cfg.ExportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-consumeCtx.Done():
				return
			case <-ticker.C:
				if err := reports.StartupExport(consumeCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.LogError(consumeCtx, "Periodic export failed", err, applog.OpExport, nil)
				}
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

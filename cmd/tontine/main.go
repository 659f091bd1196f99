package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tontine/internal/amqp"
	"tontine/internal/backend"
	"tontine/internal/cache"
	"tontine/internal/cli"
	"tontine/internal/config"
	apphttp "tontine/internal/http"
	applog "tontine/internal/log"
	"tontine/internal/middleware/ratelimit"
	"tontine/internal/ports"
	"tontine/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig((*config.Config).Validate)
	logger := cli.SetupLogger(cfg, applog.ComponentApp)
	rules := cli.LoadRules(logger, cfg)

	backendCfg, err := backend.FromAppConfig(cfg, rules)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Cleanup()

	// Ledger events are optional for the API; without a broker the worker
	// simply has nothing to consume.
	var (
		publisher ports.EventPublisher
		client    *amqp.Client
	)
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without ledger events", "error", err)
		} else {
			client = c
			defer client.Close()
			publisher = client
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	engine := backend.NewEngine(res.Store, backend.EngineOptions{
		Rules:     rules,
		Publisher: publisher,
		CacheSize: cfg.SummaryCacheSize,
		CacheTTL:  cfg.SummaryCacheTTL,
		Logger:    logger,
	})

	caches := cache.NewManager()
	caches.Register(engine.Summaries.Cache())
	cacheLogger := logger.WithComponent(applog.ComponentCache)
	caches.OnClean(func(removed int) {
		cacheLogger.Debug("Expired summaries removed", "count", removed)
	})
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Ledger:    engine.Ledger,
		Meetings:  engine.Meetings,
		Summaries: engine.Summaries,
		Payouts:   engine.Payouts,
		Ready:     res.Ready,
	}, apphttp.Options{
		RateLimit:      ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		TrustedProxies: cfg.TrustedProxies,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	serveCtx, stopServing := context.WithCancel(context.Background())
	defer stopServing()
	ctx, done := cli.GracefulShutdown(serveCtx, logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.LogError(ctx, "Server shutdown error", err, applog.OpShutdown, nil)
		}
	})

	// Writes from other processes (the admin tool) reach this cache only
	// through the broker; without one they age out with the cache TTL.
	if client != nil {
		go client.KeepSubscribed(ctx, worker.NewCacheSync(logger, engine.Summaries).HandleLedgerEvent)
	}

	go func() {
		logger.Info("Starting tontine server", "port", cfg.Port, "backend", res.Type, "amqp_enabled", publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			stopServing()
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

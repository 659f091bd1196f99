package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"tontine/internal/amqp"
	"tontine/internal/backend"
	"tontine/internal/cli"
	"tontine/internal/config"
	applog "tontine/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig((*config.Config).Validate)
	// Keep the tables readable: only warnings and errors reach the log.
	if cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}
	logger := cli.SetupLogger(cfg, applog.ComponentApp)
	rules := cli.LoadRules(logger, cfg)

	open := func(ctx context.Context) (*cli.Session, error) {
		backendCfg, err := backend.FromAppConfig(cfg, rules)
		if err != nil {
			return nil, err
		}
		res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
		if err != nil {
			return nil, err
		}
		closers := []func() error{res.Cleanup}
		opts := backend.EngineOptions{Rules: rules, Logger: logger}
		// Transitions and seeds must reach the worker and the API cache.
		if cfg.AMQPURL != "" {
			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				logger.Warn("Failed to initialize AMQP client, changes will not be announced", "error", err)
			} else {
				opts.Publisher = client
				closers = append([]func() error{client.Close}, closers...)
			}
		}
		engine := backend.NewEngine(res.Store, opts)
		return &cli.Session{Type: res.Type, Store: res.Store, Engine: engine, Close: closeAll(closers)}, nil
	}

	if err := cli.NewAdminCommand(open).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		os.Exit(1)
	}
}

func closeAll(closers []func() error) func() error {
	return func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}
}

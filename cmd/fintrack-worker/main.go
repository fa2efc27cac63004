package main

import (
	"context"
	"errors"
	"os"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg).WithComponent(applog.ComponentWorker)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for fintrack-worker")
		os.Exit(1)
	}

	ctx, stop := cli.ShutdownContext(context.Background())
	defer stop()

	logger.Info("Starting fintrack-worker", applog.FieldOperation, applog.OpStartup)

	store, err := cli.OpenStore(ctx, cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open expense store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	mirrorCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror configuration", applog.FieldError, err)
		os.Exit(1)
	}
	mirror, err := backend.NewFactory(logger.Logger).CreateMirror(ctx, mirrorCfg)
	if err != nil {
		logger.Error("Failed to create mirror", applog.FieldError, err, "backend", mirrorCfg.Type)
		os.Exit(1)
	}
	if mirror.Cleanup != nil {
		defer mirror.Cleanup()
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewSyncWorker(store, mirror.Mirror)

	// Catch up on events missed while the worker was down.
	stats, err := w.Resync(ctx)
	if err != nil {
		logger.Error("Startup resync failed", applog.FieldOperation, applog.OpSync, applog.FieldError, err)
		// continue with normal operation
	} else {
		logger.Info("Startup resync complete",
			applog.FieldOperation, applog.OpSync,
			"appended", stats.Appended,
			"removed", stats.Removed)
	}

	if err := client.ConsumeExpenseEvents(ctx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("fintrack-worker stopped", applog.FieldOperation, applog.OpShutdown)
}

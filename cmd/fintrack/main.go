package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg).WithComponent(applog.ComponentApp)

	ctx, stop := cli.ShutdownContext(context.Background())
	defer stop()

	store, err := cli.OpenStore(ctx, cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open expense store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	publisher, closePublisher, err := cli.NewPublisher(cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP publisher", applog.FieldError, err)
		os.Exit(1)
	}
	defer closePublisher()
	if publisher == nil {
		logger.Info("AMQP disabled, expense events will not be published")
	}

	svc := services.NewExpenseService(store, cli.NewGateway(cfg), publisher)
	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Ready:              store.Ping,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fintrack server",
			applog.FieldOperation, applog.OpStartup,
			"port", cfg.Port,
			applog.FieldModel, cfg.OpenAIModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// Package cli provides the start-up steps shared by cmd/fintrack and
// cmd/fintrack-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	"fintrack/internal/gateway"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile(filenames ...string) {
	_ = godotenv.Load(filenames...)
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config) *applog.Logger {
	logger := applog.New(applog.ConfigFromEnv(cfg.LogLevel, cfg.LogFormat))
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig reads the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStore opens the database at dbPath and makes sure the schema exists.
func OpenStore(ctx context.Context, dbPath string) (*storage.Store, error) {
	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// NewGateway builds the categorization gateway. The API key is read from
// the environment on every call, not here.
func NewGateway(cfg *config.Config) *gateway.Gateway {
	completer := gateway.NewOpenAICompleter(cfg.OpenAIModel, cfg.OpenAIBaseURL)
	return gateway.New(completer, gateway.WithCurrency(cfg.TipsCurrency))
}

// NewPublisher connects to the broker when AMQP_URL is set. It returns a
// nil publisher and a no-op close func otherwise.
func NewPublisher(cfg *config.Config) (services.EventPublisher, func() error, error) {
	if !cfg.AMQPEnabled() {
		return nil, func() error { return nil }, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to AMQP broker: %w", err)
	}
	return client, client.Close, nil
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

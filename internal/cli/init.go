// Package cli holds the process bootstrap shared by the binaries and the
// command tree of the staffplan planner.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"staffplan/internal/config"
	"staffplan/internal/log"
)

// SetupLogger builds a text logger at the given level on stdout and makes
// it the slog default. Unknown levels fall back to info with a warning.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	lvl, err := log.ParseLevel(level)
	cfg.Level = lvl
	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info logging", log.FieldError, err.Error())
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// LoadClientConfig loads configuration and checks the planner subset.
func LoadClientConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// RunShutdown runs cleanup with a fresh context bounded by timeout and logs
// how it went.
func RunShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
	if err := cleanup(ctx); err != nil {
		logger.Error("Shutdown failed", log.FieldError, err.Error())
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}

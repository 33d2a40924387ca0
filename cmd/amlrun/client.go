package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/amlrun/amlrun/azureml"
	"github.com/amlrun/amlrun/telemetry"
)

// buildService loads configuration, validates it, and assembles the Azure
// clients. Commands that talk to the workspace all start here.
func buildService() *azureml.Service {
	cfg := buildConfig()
	if err := cfg.Validate(); err != nil {
		fatalf("%v (set it or create amlrun.toml)", err)
	}

	logger := newLogger(cfg.LogLevel)
	clients, err := azureml.NewClients(cfg, telemetry.HTTPClient())
	if err != nil {
		fatal(err)
	}

	svc := azureml.NewService(cfg, clients, logger)
	if err := svc.Registry.Load(); err != nil {
		logger.Warn().Err(err).Msg("resource registry unreadable, starting empty")
	}
	return svc
}

// buildConfig loads configuration without requiring the cloud identity
// variables. Offline commands (data check, submit --dry-run) use it directly.
func buildConfig() azureml.Config {
	cfg, err := azureml.ConfigFromEnv()
	if err != nil {
		fatal(err)
	}
	return cfg
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// signalContext returns a context canceled by SIGINT or SIGTERM, so an
// interrupted wait or upload unwinds instead of dying mid-flight.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

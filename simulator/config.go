// Package simulator implements the subset of the Azure REST surface that
// amlrun talks to: ARM resource providers (resource groups, storage, key
// vault, application insights, container registry, Machine Learning),
// the blob data plane and the Log Analytics query endpoint. It keeps all
// state in memory and is meant for tests and local development.
package simulator

import "os"

// Config holds the simulator server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":4570").
	ListenAddr string

	// TLSCert is the path to the TLS certificate file. Empty disables TLS.
	TLSCert string

	// TLSKey is the path to the TLS private key file.
	TLSKey string

	// LogLevel is the zerolog log level (trace, debug, info, warn, error).
	LogLevel string
}

// ConfigFromEnv loads configuration from environment variables.
//
//	SIM_LISTEN_ADDR — listen address (default ":4570")
//	SIM_TLS_CERT    — TLS certificate file path
//	SIM_TLS_KEY     — TLS private key file path
//	SIM_LOG_LEVEL   — log level (default "info")
func ConfigFromEnv() Config {
	return Config{
		ListenAddr: envOrDefault("SIM_LISTEN_ADDR", ":4570"),
		TLSCert:    os.Getenv("SIM_TLS_CERT"),
		TLSKey:     os.Getenv("SIM_TLS_KEY"),
		LogLevel:   envOrDefault("SIM_LOG_LEVEL", "info"),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the escrow relayer service
type Config struct {
	// Source chain (EVM) configuration
	SourceRPCURL  string
	ChainID       int64
	EscrowAddress string

	// Relayer signing key (32-byte secp256k1 hex, 0x prefix optional)
	RelayerPrivateKey string

	// Database configuration (embedded SQLite file, created if missing)
	DatabaseURL      string
	DatabaseMaxConns int

	// Server configuration
	HTTPPort    uint16
	MetricsPort int

	// Processor configuration
	PollInterval time.Duration

	// Demo behavior toggles
	SimulateFaults      bool // inject transient failures at transition boundaries
	SimulatedSettlement bool // record a synthetic settle tx when the source RPC is unreachable
	AutoStartSimulation bool // start the traffic generator with a 1-hour deadline
}

// Load reads configuration from environment variables.
//
// If RELAYER_CONFIG points at a YAML file, it is applied after the
// environment has been read, and every value it sets overrides the
// environment-derived one.
func Load() (*Config, error) {
	cfg := &Config{
		SourceRPCURL:  getEnv("SOURCE_RPC_URL", "http://127.0.0.1:8545"),
		ChainID:       getEnvInt64("CHAIN_ID", 31337),
		EscrowAddress: getEnv("ESCROW_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3"),

		// Anvil default account #0 private key; never use outside local dev
		RelayerPrivateKey: getEnv("RELAYER_PRIVATE_KEY",
			"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"),

		DatabaseURL:      getEnv("DATABASE_URL", "relayer.db"),
		DatabaseMaxConns: getEnvInt("DATABASE_MAX_CONNS", 5),

		HTTPPort:    uint16(getEnvInt("HTTP_PORT", 3001)),
		MetricsPort: getEnvInt("METRICS_PORT", 9090),

		PollInterval: time.Duration(getEnvInt64("POLL_INTERVAL_MS", 500)) * time.Millisecond,

		SimulateFaults:      getEnvBool("SIMULATE_FAULTS", true),
		SimulatedSettlement: getEnvBool("SIMULATED_SETTLEMENT", true),
		AutoStartSimulation: getEnvBool("AUTO_START_SIMULATION", false),
	}

	if path := os.Getenv("RELAYER_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("failed to apply config file: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and plausible.
// Call after Load() before starting the service.
func (c *Config) Validate() error {
	var errors []string

	if c.SourceRPCURL == "" {
		errors = append(errors, "SOURCE_RPC_URL is required but not set")
	}
	if c.EscrowAddress == "" {
		errors = append(errors, "ESCROW_ADDRESS is required but not set")
	} else if !strings.HasPrefix(c.EscrowAddress, "0x") || len(c.EscrowAddress) != 42 {
		errors = append(errors, "ESCROW_ADDRESS must be a 20-byte 0x-prefixed hex address")
	}
	if c.RelayerPrivateKey == "" {
		errors = append(errors, "RELAYER_PRIVATE_KEY is required but not set")
	} else if len(strings.TrimPrefix(c.RelayerPrivateKey, "0x")) != 64 {
		errors = append(errors, "RELAYER_PRIVATE_KEY must be a 32-byte hex string")
	}
	if c.DatabaseURL == "" {
		errors = append(errors, "DATABASE_URL is required but not set")
	}
	if c.DatabaseMaxConns < 5 {
		errors = append(errors, "DATABASE_MAX_CONNS must be at least 5")
	}
	if c.PollInterval <= 0 {
		errors = append(errors, "POLL_INTERVAL_MS must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

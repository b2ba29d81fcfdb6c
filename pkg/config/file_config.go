// Copyright 2025 Omnilock Labs
//
// YAML Configuration File Loader
// Optional file-based configuration with ${VAR:-default} substitution

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML decoding. Zero values mean "not set";
// only set fields override the environment-derived configuration.
type fileConfig struct {
	Source struct {
		RPCURL        string `yaml:"rpc_url"`
		ChainID       int64  `yaml:"chain_id"`
		EscrowAddress string `yaml:"escrow_address"`
	} `yaml:"source"`

	Relayer struct {
		PrivateKey     string `yaml:"private_key"`
		PollIntervalMS int64  `yaml:"poll_interval_ms"`
	} `yaml:"relayer"`

	Database struct {
		URL      string `yaml:"url"`
		MaxConns int    `yaml:"max_conns"`
	} `yaml:"database"`

	Server struct {
		HTTPPort    int `yaml:"http_port"`
		MetricsPort int `yaml:"metrics_port"`
	} `yaml:"server"`

	Demo struct {
		SimulateFaults      *bool `yaml:"simulate_faults"`
		SimulatedSettlement *bool `yaml:"simulated_settlement"`
		AutoStartSimulation *bool `yaml:"auto_start_simulation"`
	} `yaml:"demo"`
}

// applyFile overlays values from a YAML file onto the receiver.
// Environment variables in the format ${VAR_NAME} or ${VAR_NAME:-default}
// are substituted before parsing.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(expanded), &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.Source.RPCURL != "" {
		c.SourceRPCURL = fc.Source.RPCURL
	}
	if fc.Source.ChainID != 0 {
		c.ChainID = fc.Source.ChainID
	}
	if fc.Source.EscrowAddress != "" {
		c.EscrowAddress = fc.Source.EscrowAddress
	}
	if fc.Relayer.PrivateKey != "" {
		c.RelayerPrivateKey = fc.Relayer.PrivateKey
	}
	if fc.Relayer.PollIntervalMS != 0 {
		c.PollInterval = time.Duration(fc.Relayer.PollIntervalMS) * time.Millisecond
	}
	if fc.Database.URL != "" {
		c.DatabaseURL = fc.Database.URL
	}
	if fc.Database.MaxConns != 0 {
		c.DatabaseMaxConns = fc.Database.MaxConns
	}
	if fc.Server.HTTPPort != 0 {
		c.HTTPPort = uint16(fc.Server.HTTPPort)
	}
	if fc.Server.MetricsPort != 0 {
		c.MetricsPort = fc.Server.MetricsPort
	}
	if fc.Demo.SimulateFaults != nil {
		c.SimulateFaults = *fc.Demo.SimulateFaults
	}
	if fc.Demo.SimulatedSettlement != nil {
		c.SimulatedSettlement = *fc.Demo.SimulatedSettlement
	}
	if fc.Demo.AutoStartSimulation != nil {
		c.AutoStartSimulation = *fc.Demo.AutoStartSimulation
	}

	return nil
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}

		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.SourceRPCURL != "http://127.0.0.1:8545" {
		t.Errorf("rpc url mismatch: %s", cfg.SourceRPCURL)
	}
	if cfg.HTTPPort != 3001 {
		t.Errorf("http port mismatch: %d", cfg.HTTPPort)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("poll interval mismatch: %s", cfg.PollInterval)
	}
	if cfg.AutoStartSimulation {
		t.Error("auto-start must default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8088")
	t.Setenv("POLL_INTERVAL_MS", "250")
	t.Setenv("AUTO_START_SIMULATION", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.HTTPPort != 8088 {
		t.Errorf("http port mismatch: %d", cfg.HTTPPort)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("poll interval mismatch: %s", cfg.PollInterval)
	}
	if !cfg.AutoStartSimulation {
		t.Error("expected auto-start to be on")
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	cfg.EscrowAddress = "not-an-address"
	cfg.RelayerPrivateKey = "short"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure")
	}
}

func TestApplyFile_OverlaysAndSubstitutes(t *testing.T) {
	t.Setenv("TEST_RELAYER_RPC", "http://10.0.0.1:8545")

	dir := t.TempDir()
	path := filepath.Join(dir, "relayer.yaml")
	content := `
source:
  rpc_url: ${TEST_RELAYER_RPC}
  chain_id: 1337
relayer:
  poll_interval_ms: 100
demo:
  simulate_faults: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("RELAYER_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.SourceRPCURL != "http://10.0.0.1:8545" {
		t.Errorf("env substitution failed: %s", cfg.SourceRPCURL)
	}
	if cfg.ChainID != 1337 {
		t.Errorf("chain id mismatch: %d", cfg.ChainID)
	}
	if cfg.PollInterval != 100*time.Millisecond {
		t.Errorf("poll interval mismatch: %s", cfg.PollInterval)
	}
	if cfg.SimulateFaults {
		t.Error("expected fault injection to be disabled by the file")
	}
	// Values the file does not mention keep their defaults
	if cfg.HTTPPort != 3001 {
		t.Errorf("http port mismatch: %d", cfg.HTTPPort)
	}
}

func TestApplyFile_DefaultSubstitution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relayer.yaml")
	content := "source:\n  rpc_url: ${UNSET_RELAYER_VAR:-http://fallback:8545}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("RELAYER_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.SourceRPCURL != "http://fallback:8545" {
		t.Errorf("default substitution failed: %s", cfg.SourceRPCURL)
	}
}

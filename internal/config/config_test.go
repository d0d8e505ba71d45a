package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/power"
)

func writeParams(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write params file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"CHAIN_BACKEND", "REFRESH_INTERVAL", "GOVERNANCE_PARAMS_FILE", "CACHE_SIZE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chain.Backend != BackendSQLite {
		t.Errorf("Expected sqlite backend, got %q", cfg.Chain.Backend)
	}
	if cfg.Refresher.Interval != 5*time.Second {
		t.Errorf("Expected 5s refresh interval, got %v", cfg.Refresher.Interval)
	}
	if cfg.Cache.Size != 1024 {
		t.Errorf("Expected cache size 1024, got %d", cfg.Cache.Size)
	}
	if cfg.Params != DefaultGovernanceParams() {
		t.Errorf("Expected default params, got %+v", cfg.Params)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CHAIN_BACKEND", "rpc")
	t.Setenv("REFRESH_INTERVAL", "250ms")
	t.Setenv("CACHE_SIZE", "not-a-number")
	t.Setenv("GOVERNANCE_PARAMS_FILE", writeParams(t, "exit_fee_basis_points: 250\n"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chain.Backend != BackendRPC || cfg.Refresher.Interval != 250*time.Millisecond {
		t.Errorf("Expected overrides to apply, got %+v", cfg.Chain)
	}
	if cfg.Cache.Size != 1024 {
		t.Errorf("Expected unparseable int to fall back to default, got %d", cfg.Cache.Size)
	}
	if cfg.Params.ExitFeeBasisPoints != 250 {
		t.Errorf("Expected fee from params file, got %d", cfg.Params.ExitFeeBasisPoints)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad duration", "REFRESH_INTERVAL", "soon"},
		{"unknown backend", "CHAIN_BACKEND", "carrier-pigeon"},
		{"zero interval", "REFRESH_INTERVAL", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOVERNANCE_PARAMS_FILE", "")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected %s=%q to be rejected", tt.key, tt.value)
			}
		})
	}
}

func TestLoadGovernanceParams(t *testing.T) {
	path := writeParams(t, `
max_lock_duration: 8760h
warmup_period: 24h
exit_fee_basis_points: 50
queue:
  discipline: dwell
  min_dwell: 168h
`)

	params, err := LoadGovernanceParams(path)
	if err != nil {
		t.Fatalf("LoadGovernanceParams failed: %v", err)
	}
	if params.MaxLockDuration != 8760*time.Hour || params.WarmupPeriod != 24*time.Hour {
		t.Errorf("Unexpected durations: %+v", params)
	}
	if params.Queue.Discipline != models.QueueDisciplineDwell || params.Queue.MinDwell != 7*24*time.Hour {
		t.Errorf("Unexpected queue params: %+v", params.Queue)
	}
}

func TestLoadGovernanceParams_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"fee above 100%", "exit_fee_basis_points: 10001\n", "exit_fee_basis_points"},
		{"negative warmup", "warmup_period: -1h\n", "warmup_period"},
		{"warmup longer than max", "max_lock_duration: 24h\nwarmup_period: 48h\n", "shorter"},
		{"unknown discipline", "queue:\n  discipline: lifo\n", "unknown queue discipline"},
		{"dwell without min", "queue:\n  discipline: dwell\n", "min_dwell"},
		{"unknown key", "max_lock: 1h\n", "max_lock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGovernanceParams(writeParams(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaultGovernanceParams(t *testing.T) {
	params := DefaultGovernanceParams()
	if params.MaxLockDuration != power.DefaultMaxLockDuration {
		t.Errorf("Expected four year maximum, got %v", params.MaxLockDuration)
	}
	if err := ValidateGovernanceParams(params); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadGovernanceParams_RepositoryExample(t *testing.T) {
	params, err := LoadGovernanceParams(filepath.Join("..", "..", "params.yaml"))
	if err != nil {
		t.Fatalf("Failed to load example params: %v", err)
	}
	if params != DefaultGovernanceParams() {
		t.Errorf("Expected example params to match defaults, got %+v", params)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 20, cfg.Orchestrator.StepBudget)
	assert.Equal(t, "coding", cfg.Orchestrator.DefaultMode)
	assert.Equal(t, 24*time.Hour, cfg.Approvals.TTL)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero step budget",
			mutate:  func(c *Config) { c.Orchestrator.StepBudget = 0 },
			wantErr: "step budget",
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Orchestrator.DefaultMode = "turbo" },
			wantErr: "invalid default mode",
		},
		{
			name:    "zero approval ttl",
			mutate:  func(c *Config) { c.Approvals.TTL = 0 },
			wantErr: "approval TTL",
		},
		{
			name: "duplicate provider",
			mutate: func(c *Config) {
				c.Providers = []ProviderConfig{{ID: "openai"}, {ID: "openai"}}
			},
			wantErr: "duplicate provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoader_MissingFileReturnsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Orchestrator.StepBudget)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.WorkspacePath)
}

func TestLoader_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lea.json")
	content := `{"data_dir": "` + dir + `", "orchestrator": {"step_budget": 7, "default_mode": "cli"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Orchestrator.StepBudget)
	assert.Equal(t, "cli", cfg.Orchestrator.DefaultMode)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "lea.log"), cfg.Logging.File)
}

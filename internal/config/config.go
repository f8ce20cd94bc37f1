package config

import (
	"fmt"
	"time"
)

// Config represents the main Lea configuration
type Config struct {
	// Data directory (sqlite store, run state)
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Workspace path for filesystem tools
	WorkspacePath string `json:"workspace_path" mapstructure:"workspace_path"`

	// Orchestration
	Orchestrator OrchestratorConfig `json:"orchestrator" mapstructure:"orchestrator"`

	// Approvals
	Approvals ApprovalsConfig `json:"approvals" mapstructure:"approvals"`

	// Providers
	Providers []ProviderConfig `json:"providers" mapstructure:"providers"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// OrchestratorConfig bounds the tool loop
type OrchestratorConfig struct {
	StepBudget  int    `json:"step_budget" mapstructure:"step_budget"`
	DefaultMode string `json:"default_mode" mapstructure:"default_mode"` // coding, browser, cli, auto
}

// ApprovalsConfig controls the approval lifecycle
type ApprovalsConfig struct {
	// TTL after which a pending approval is expired by the sweeper
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`
}

// ProviderConfig holds credentials for a model execution backend
type ProviderConfig struct {
	ID     string `json:"id" mapstructure:"id"` // "anthropic", "openai"
	APIKey string `json:"api_key" mapstructure:"api_key"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			StepBudget:  20,
			DefaultMode: "coding",
		},
		Approvals: ApprovalsConfig{
			TTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Orchestrator.StepBudget <= 0 {
		return fmt.Errorf("orchestrator step budget must be positive")
	}
	switch c.Orchestrator.DefaultMode {
	case "coding", "browser", "cli", "auto":
	default:
		return fmt.Errorf("invalid default mode: %s", c.Orchestrator.DefaultMode)
	}
	if c.Approvals.TTL <= 0 {
		return fmt.Errorf("approval TTL must be positive")
	}
	seen := map[string]bool{}
	for _, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider id cannot be empty")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate provider: %s", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

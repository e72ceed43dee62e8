// Package config holds application configuration and the company settings file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all engine configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// Decision gateway
	DecisionEndpoint string        `envconfig:"DECISION_ENDPOINT" default:"https://openrouter.ai/api/v1/chat/completions"`
	DecisionAPIKey   string        `envconfig:"DECISION_API_KEY"`
	DecisionKeyFile  string        `envconfig:"DECISION_KEY_FILE" default:".decision_key"`
	PacingDelay      time.Duration `envconfig:"PACING_DELAY" default:"1s"`
	CallTimeout      time.Duration `envconfig:"CALL_TIMEOUT" default:"30s"`
	DefaultModel     string        `envconfig:"DEFAULT_MODEL" default:"openai/gpt-3.5-turbo"`

	// Cycle driver
	UnlimitedMode                bool          `envconfig:"UNLIMITED_MODE" default:"false"`
	MaxWorkersPerCycle           int           `envconfig:"MAX_WORKERS_PER_CYCLE" default:"5"`
	MaxWorkersPerCycleUnlimited  int           `envconfig:"MAX_WORKERS_PER_CYCLE_UNLIMITED" default:"10"`
	DecisionConcurrency          int           `envconfig:"DECISION_CONCURRENCY" default:"2"`
	CycleInterval                time.Duration `envconfig:"CYCLE_INTERVAL" default:"15s"`

	// Workforce
	MinPerLocation     int    `envconfig:"MIN_PER_LOCATION" default:"1"`
	MinPerRole         int    `envconfig:"MIN_PER_ROLE" default:"1"`
	IdleAttritionRoles string `envconfig:"IDLE_ATTRITION_ROLES" default:"Executor"`
	IdleDismissAfter   int    `envconfig:"IDLE_DISMISS_AFTER" default:"5"`

	// Lifecycle
	HoursPerCycle          float64 `envconfig:"HOURS_PER_CYCLE" default:"8"`
	HoursPerCycleUnlimited float64 `envconfig:"HOURS_PER_CYCLE_UNLIMITED" default:"16"`
	BacklogBatch           int     `envconfig:"BACKLOG_BATCH" default:"2"`
	BacklogBatchUnlimited  int     `envconfig:"BACKLOG_BATCH_UNLIMITED" default:"5"`
	ServiceEffortThreshold float64 `envconfig:"SERVICE_EFFORT_THRESHOLD" default:"40"`

	// HTTP API
	APIAuthKey string `envconfig:"API_AUTH_KEY"`

	// Persistence
	SnapshotDir  string `envconfig:"SNAPSHOT_DIR" default:"data"`
	SettingsFile string `envconfig:"SETTINGS_FILE" default:"company.yaml"`
}

// IdleAttritionRoleList returns the parsed set of roles eligible for
// idle-based attrition. Empty entries are dropped.
func (c *Config) IdleAttritionRoleList() []string {
	parts := strings.Split(c.IdleAttritionRoles, ",")
	roles := make([]string, 0, len(parts))
	for _, r := range parts {
		r = strings.TrimSpace(r)
		if r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// HoursPerCycleEffective returns the per-cycle service progress increment
// for the current operating mode.
func (c *Config) HoursPerCycleEffective() float64 {
	if c.UnlimitedMode {
		return c.HoursPerCycleUnlimited
	}
	return c.HoursPerCycle
}

// MaxWorkersEffective returns the per-cycle decision cap for the current
// operating mode.
func (c *Config) MaxWorkersEffective() int {
	if c.UnlimitedMode {
		return c.MaxWorkersPerCycleUnlimited
	}
	return c.MaxWorkersPerCycle
}

// BacklogBatchEffective returns the auto-generated backlog batch size for
// the current operating mode.
func (c *Config) BacklogBatchEffective() int {
	if c.UnlimitedMode {
		return c.BacklogBatchUnlimited
	}
	return c.BacklogBatch
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

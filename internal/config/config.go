// Package config loads Pulse's typed configuration record: a YAML file for
// structure plus .env for secrets, following the teacher's
// godotenv.Load()-then-try-next-to-executable pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Workspace holds filesystem locations Pulse senses but never renders into.
type Workspace struct {
	Root        string `yaml:"root"`
	DailyNotes  string `yaml:"daily_notes"`
}

// Logging configures the logging package.
type Logging struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// SessionMode selects whether triggers deliver into the main session or an
// isolated one.
type SessionMode string

const (
	SessionMain     SessionMode = "main"
	SessionIsolated SessionMode = "isolated"
)

// Openclaw configures the outbound webhook to the agent-runner.
type Openclaw struct {
	WebhookURL     string      `yaml:"webhook_url"`
	WebhookToken   string      `yaml:"webhook_token,omitempty"`
	SessionMode    SessionMode `yaml:"session_mode"`
	Deliver        string      `yaml:"deliver"`
	IsolatedModel  string      `yaml:"isolated_model,omitempty"`
	MessagePrefix  string      `yaml:"message_prefix"`
}

// EvaluatorRules configures the Priority Evaluator's thresholds.
type EvaluatorRules struct {
	SingleDriveThreshold    float64 `yaml:"single_drive_threshold"`
	CombinedThreshold       float64 `yaml:"combined_threshold"`
	SuppressDuringConversation bool `yaml:"suppress_during_conversation"`
	// CooldownSeconds is the idle-ambient-floor exception's minimum gap
	// since the last trigger; mutable at runtime by a "cooldown" mutation.
	CooldownSeconds int64 `yaml:"cooldown_seconds"`
	// TurnsPerHour caps how many ordinary (non-critical) triggers the
	// evaluator will allow in a rolling hour; mutable by a
	// "turns_per_hour" mutation.
	TurnsPerHour int `yaml:"turns_per_hour"`
}

// Evaluator wraps EvaluatorRules to mirror the spec's `evaluator.rules.*`
// dotted-path naming.
type Evaluator struct {
	Rules EvaluatorRules `yaml:"rules"`
}

// DriveConfig seeds one initial drive.
type DriveConfig struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
	Rate   float64 `yaml:"rate"`
	Decay  float64 `yaml:"decay"`
}

// Config is Pulse's full typed configuration record.
type Config struct {
	StateDir  string        `yaml:"state_dir"`
	TickPeriod time.Duration `yaml:"tick_period"`
	Workspace Workspace     `yaml:"workspace"`
	Logging   Logging       `yaml:"logging"`
	Openclaw  Openclaw      `yaml:"openclaw"`
	Evaluator Evaluator     `yaml:"evaluator"`
	Drives    []DriveConfig `yaml:"drives"`
}

// Default returns a Config with the spec's documented defaults.
func Default() Config {
	return Config{
		StateDir:   "state",
		TickPeriod: 5 * time.Second,
		Workspace: Workspace{
			Root:       "workspace",
			DailyNotes: "workspace/daily",
		},
		Logging: Logging{
			File:  "pulse.log",
			Level: "info",
		},
		Openclaw: Openclaw{
			SessionMode:   SessionMain,
			Deliver:       "chat",
			MessagePrefix: "[pulse]",
		},
		Evaluator: Evaluator{
			Rules: EvaluatorRules{
				SingleDriveThreshold:       1.6,
				CombinedThreshold:          6.0,
				SuppressDuringConversation: true,
				CooldownSeconds:            1800,
				TurnsPerHour:               30,
			},
		},
		Drives: []DriveConfig{
			{Name: "goals", Weight: 1.0, Rate: 0.01},
			{Name: "growth", Weight: 1.0, Rate: 0.008},
			{Name: "connection", Weight: 0.5, Rate: 0.005},
		},
	}
}

// Load reads a YAML config file, falling back to defaults for anything
// unset, and loads a .env alongside it (or next to the executable) for
// secrets such as the webhook token.
func Load(path string) (Config, error) {
	cfg := Default()

	loadDotenv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides applies environment variables that bind to config
// fields. PULSE_LOG_LEVEL overrides logging.level per spec §6.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PULSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PULSE_WEBHOOK_TOKEN"); v != "" {
		cfg.Openclaw.WebhookToken = v
	}
}

// loadDotenv tries to load a .env from the config file's directory, then
// from the directory next to the running executable, matching
// cmd/bud-mcp/main.go's lookup order. Failure to find one is not an error.
func loadDotenv(configPath string) {
	dir := filepath.Dir(configPath)
	if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
		return
	}
	if exe, err := os.Executable(); err == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(exe), ".env"))
	}
}

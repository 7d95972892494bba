// Package config loads daemon configuration from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cyp0633/recuredit/editor"
	"github.com/cyp0633/recuredit/recurrence"
	"gopkg.in/yaml.v3"
)

// Session store backends
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Config is the daemon configuration
type Config struct {
	Addr     string         `yaml:"addr"`
	Timezone string         `yaml:"timezone"`
	Horizon  HorizonConfig  `yaml:"horizon"`
	Sessions SessionsConfig `yaml:"sessions"`
	Auth     AuthConfig     `yaml:"auth"`
}

// AuthConfig enables basic authentication when Users is not empty
type AuthConfig struct {
	Realm string            `yaml:"realm"`
	Users map[string]string `yaml:"users"` // username -> password
}

// Enabled reports whether requests must authenticate
func (a AuthConfig) Enabled() bool {
	return len(a.Users) > 0
}

// HorizonConfig mirrors recurrence.HorizonPolicy
type HorizonConfig struct {
	BaseCount int  `yaml:"base_count"`
	CountStep int  `yaml:"count_step"`
	MaxCount  int  `yaml:"max_count"`
	MonthStep int  `yaml:"month_step"`
	Fixed     bool `yaml:"fixed"`
}

// SessionsConfig selects and tunes the session store
type SessionsConfig struct {
	Backend         string        `yaml:"backend"` // "memory" | "nats"
	TTL             time.Duration `yaml:"ttl"`
	MaxEntries      int           `yaml:"max_entries"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	NATSURL         string        `yaml:"nats_url"`
	Bucket          string        `yaml:"bucket"`
	// ExpansionCache bounds the open expansions kept for "show more"; 0 disables the cache
	ExpansionCache  int           `yaml:"expansion_cache"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	policy := recurrence.DefaultHorizonPolicy
	return &Config{
		Addr:     ":8080",
		Timezone: "UTC",
		Horizon: HorizonConfig{
			BaseCount: policy.BaseCount,
			CountStep: policy.CountStep,
			MaxCount:  policy.MaxCount,
			MonthStep: policy.MonthStep,
		},
		Sessions: SessionsConfig{
			Backend:         BackendMemory,
			TTL:             time.Hour,
			MaxEntries:      1000,
			CleanupInterval: 5 * time.Minute,
			Bucket:          "recuredit-sessions",
			ExpansionCache:  editor.DefaultExpansionCacheSize,
		},
		Auth: AuthConfig{
			Realm: "recuredit",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("RECUREDIT_ADDR"); ok && v != "" {
		c.Addr = v
	}
	if v, ok := lookup("RECUREDIT_TIMEZONE"); ok && v != "" {
		c.Timezone = v
	}
	if v, ok := lookup("RECUREDIT_NATS_URL"); ok && v != "" {
		c.Sessions.NATSURL = v
		c.Sessions.Backend = BackendNATS
	}
	if v, ok := lookup("RECUREDIT_SESSION_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RECUREDIT_SESSION_TTL: %w", err)
		}
		c.Sessions.TTL = ttl
	}
	if v, ok := lookup("RECUREDIT_HORIZON_FIXED"); ok && v != "" {
		fixed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RECUREDIT_HORIZON_FIXED: %w", err)
		}
		c.Horizon.Fixed = fixed
	}
	return nil
}

// Validate checks the configuration for values the daemon cannot run with
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if c.Horizon.BaseCount < 1 || c.Horizon.CountStep < 0 || c.Horizon.MonthStep < 0 {
		return fmt.Errorf("horizon: base_count must be positive and steps non-negative")
	}
	if c.Horizon.MaxCount > 0 && c.Horizon.MaxCount < c.Horizon.BaseCount {
		return fmt.Errorf("horizon: max_count %d is below base_count %d", c.Horizon.MaxCount, c.Horizon.BaseCount)
	}
	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("sessions: ttl must be positive")
	}
	if c.Sessions.ExpansionCache < 0 {
		return fmt.Errorf("sessions: expansion_cache must not be negative")
	}

	switch c.Sessions.Backend {
	case BackendMemory:
	case BackendNATS:
		if c.Sessions.NATSURL == "" {
			return fmt.Errorf("sessions: nats backend requires nats_url")
		}
	default:
		return fmt.Errorf("sessions: unknown backend %q", c.Sessions.Backend)
	}
	return nil
}

// EngineConfig builds the recurrence engine configuration
func (c *Config) EngineConfig() (recurrence.EngineConfig, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return recurrence.EngineConfig{}, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}

	return recurrence.EngineConfig{
		Horizon: recurrence.HorizonPolicy{
			BaseCount: c.Horizon.BaseCount,
			CountStep: c.Horizon.CountStep,
			MaxCount:  c.Horizon.MaxCount,
			MonthStep: c.Horizon.MonthStep,
			Fixed:     c.Horizon.Fixed,
			Location:  loc,
		},
		Location: loc,
	}, nil
}

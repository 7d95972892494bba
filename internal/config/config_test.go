package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recuredit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RECUREDIT_ADDR",
		"RECUREDIT_TIMEZONE",
		"RECUREDIT_NATS_URL",
		"RECUREDIT_SESSION_TTL",
		"RECUREDIT_HORIZON_FIXED",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 1024, cfg.Horizon.BaseCount)
	assert.Equal(t, 64000, cfg.Horizon.MaxCount)
	assert.Equal(t, BackendMemory, cfg.Sessions.Backend)
	assert.Equal(t, 256, cfg.Sessions.ExpansionCache)
	assert.False(t, cfg.Auth.Enabled())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
addr: ":9090"
timezone: Asia/Singapore
horizon:
  base_count: 500
  fixed: true
sessions:
  ttl: 30m
  max_entries: 10
  expansion_cache: 0
auth:
  users:
    alice: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "Asia/Singapore", cfg.Timezone)
	assert.Equal(t, 500, cfg.Horizon.BaseCount)
	assert.Equal(t, 128, cfg.Horizon.CountStep, "unset fields keep defaults")
	assert.True(t, cfg.Horizon.Fixed)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, 10, cfg.Sessions.MaxEntries)
	assert.Zero(t, cfg.Sessions.ExpansionCache, "an explicit 0 disables the cache")
	assert.True(t, cfg.Auth.Enabled())
	assert.Equal(t, "secret", cfg.Auth.Users["alice"])
	assert.Equal(t, "recuredit", cfg.Auth.Realm)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECUREDIT_ADDR", "127.0.0.1:7000")
	t.Setenv("RECUREDIT_NATS_URL", "nats://localhost:4222")
	t.Setenv("RECUREDIT_SESSION_TTL", "2h")
	t.Setenv("RECUREDIT_HORIZON_FIXED", "true")
	t.Setenv("RECUREDIT_TIMEZONE", "Europe/Paris")

	cfg, err := Load(writeConfig(t, "addr: \":9090\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Equal(t, BackendNATS, cfg.Sessions.Backend)
	assert.Equal(t, "nats://localhost:4222", cfg.Sessions.NATSURL)
	assert.Equal(t, 2*time.Hour, cfg.Sessions.TTL)
	assert.True(t, cfg.Horizon.Fixed)
	assert.Equal(t, "Europe/Paris", cfg.Timezone)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "Bad YAML", file: "addr: [\n"},
		{name: "Bad TTL", env: map[string]string{"RECUREDIT_SESSION_TTL": "soon"}},
		{name: "Bad fixed flag", env: map[string]string{"RECUREDIT_HORIZON_FIXED": "maybe"}},
		{name: "Unknown time zone", env: map[string]string{"RECUREDIT_TIMEZONE": "Mars/Olympus_Mons"}},
		{name: "Unknown backend", file: "sessions:\n  backend: redis\n"},
		{name: "NATS without URL", file: "sessions:\n  backend: nats\n"},
		{name: "Zero base count", file: "horizon:\n  base_count: 0\n"},
		{name: "Cap below base", file: "horizon:\n  max_count: 10\n"},
		{name: "Negative expansion cache", file: "sessions:\n  expansion_cache: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_EngineConfig(t *testing.T) {
	cfg := Default()
	cfg.Timezone = "Asia/Tokyo"
	cfg.Horizon.Fixed = true

	engineConfig, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", engineConfig.Location.String())
	assert.Equal(t, engineConfig.Location, engineConfig.Horizon.Location)
	assert.True(t, engineConfig.Horizon.Fixed)

	h, err := engineConfig.Horizon.Compute(3)
	require.NoError(t, err)
	assert.Equal(t, 1024, h.CountLimit)
}

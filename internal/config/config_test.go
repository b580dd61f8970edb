// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkhaven/parkhaven/pkg/errutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileOnly(t *testing.T) {
	path := writeConfig(t, `
server: hub1
park: magic-kingdom
database_url: postgres://localhost/parkhaven
redis:
  addr: redis.example:6379
  channel: custom:channel
queue:
  tick_interval: 2s
  holding_window: 30s
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "hub1", cfg.Server)
	assert.Equal(t, "magic-kingdom", cfg.Park)
	assert.Equal(t, "redis.example:6379", cfg.Redis.Addr)
	assert.Equal(t, "custom:channel", cfg.Redis.Channel)
	assert.Equal(t, 2*time.Second, cfg.Queue.TickInterval)
	assert.Equal(t, 30*time.Second, cfg.Queue.HoldingWindow)

	// Unset keys keep their defaults.
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.Equal(t, "127.0.0.1:9110", cfg.ConsoleAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 8, cfg.Queue.ResyncCycles)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
server: hub1
redis:
  addr: redis.example:6379
`)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--server", "hub2",
		"--redis-addr", "other:6379",
		"--queue-holding-window", "20s",
	}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "hub2", cfg.Server)
	assert.Equal(t, "other:6379", cfg.Redis.Addr)
	assert.Equal(t, 20*time.Second, cfg.Queue.HoldingWindow)
}

func TestLoad_UnsetFlagsDoNotClobber(t *testing.T) {
	path := writeConfig(t, `
server: hub1
metrics_addr: 0.0.0.0:9200
`)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9200", cfg.MetricsAddr, "unset flag must not override file value")
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr, "unset flag must not override default")
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
}

func TestLoad_DefaultMissingFileIsFine(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--server", "hub1"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "hub1", cfg.Server)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := Load(path, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{
			name:   "missing server identity",
			mutate: func(c *Config) { c.Server = "" },
			errMsg: "server identity",
		},
		{
			name:   "missing redis addr",
			mutate: func(c *Config) { c.Redis.Addr = "" },
			errMsg: "redis address",
		},
		{
			name:   "zero tick interval",
			mutate: func(c *Config) { c.Queue.TickInterval = 0 },
			errMsg: "tick interval",
		},
		{
			name:   "zero resync cycles",
			mutate: func(c *Config) { c.Queue.ResyncCycles = 0 },
			errMsg: "resync cycles",
		},
		{
			name:   "negative holding window",
			mutate: func(c *Config) { c.Queue.HoldingWindow = -time.Second },
			errMsg: "holding window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Server = "hub1"
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFlagKey(t *testing.T) {
	tests := map[string]string{
		"server":               "server",
		"database-url":         "database_url",
		"redis-addr":           "redis.addr",
		"redis-channel":        "redis.channel",
		"queue-tick-interval":  "queue.tick_interval",
		"queue-resync-cycles":  "queue.resync_cycles",
		"queue-holding-window": "queue.holding_window",
	}
	for name, want := range tests {
		assert.Equal(t, want, flagKey(name), "flag %q", name)
	}
}

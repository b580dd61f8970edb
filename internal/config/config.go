// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

// Package config loads server configuration from a YAML file with
// command-line flag overrides.
package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/parkhaven/parkhaven/internal/xdg"
)

// RedisConfig holds connection settings for the relay transport.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Channel  string `koanf:"channel"`
}

// QueueConfig holds timing settings for queue processing.
type QueueConfig struct {
	TickInterval  time.Duration `koanf:"tick_interval"`
	ResyncCycles  int           `koanf:"resync_cycles"`
	HoldingWindow time.Duration `koanf:"holding_window"`
}

// Config is the full server configuration.
type Config struct {
	// Server is this server's identity on the relay network. It must be
	// unique across the park network; queue host authority hangs off it.
	Server      string      `koanf:"server"`
	Park        string      `koanf:"park"`
	ParksDir    string      `koanf:"parks_dir"`
	DatabaseURL string      `koanf:"database_url"`
	MetricsAddr string      `koanf:"metrics_addr"`
	ConsoleAddr string      `koanf:"console_addr"`
	LogFormat   string      `koanf:"log_format"`
	LogLevel    string      `koanf:"log_level"`
	Redis       RedisConfig `koanf:"redis"`
	Queue       QueueConfig `koanf:"queue"`
}

// Default returns the configuration defaults. File and flag values are
// merged over these.
func Default() *Config {
	return &Config{
		ParksDir:    xdg.ParksDir(),
		MetricsAddr: "127.0.0.1:9100",
		ConsoleAddr: "127.0.0.1:9110",
		LogFormat:   "json",
		LogLevel:    "info",
		Redis: RedisConfig{
			Addr:    "127.0.0.1:6379",
			Channel: "parkhaven:queues",
		},
		Queue: QueueConfig{
			TickInterval:  time.Second,
			ResyncCycles:  8,
			HoldingWindow: 15 * time.Second,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "config.yaml")
}

// RegisterFlags defines the configuration override flags on fs.
// Flag names map to config keys with dashes as underscores; the
// redis- and queue- prefixes address the nested sections.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("server", "", "server identity on the relay network")
	fs.String("park", "", "park file to load queues from")
	fs.String("parks-dir", "", "directory containing park files")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("metrics-addr", "", "observability listen address")
	fs.String("console-addr", "", "admin console listen address (empty disables)")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("redis-addr", "", "Redis address for the relay")
	fs.String("redis-password", "", "Redis password")
	fs.Int("redis-db", 0, "Redis database number")
	fs.String("redis-channel", "", "Redis pub/sub channel")
	fs.Duration("queue-tick-interval", 0, "queue processing interval")
	fs.Int("queue-resync-cycles", 0, "ticks between full state resyncs")
	fs.Duration("queue-holding-window", 0, "holding area confirmation window")
}

// flagKey maps a flag name to its koanf key.
func flagKey(name string) string {
	key := strings.ReplaceAll(name, "-", "_")
	for _, section := range []string{"redis", "queue"} {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// Load reads configuration from path, overlaying any flags the user set.
// An empty path means the default location; a missing file there is fine,
// an explicitly given path must exist.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if path == "" {
		path = DefaultPath()
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		// Only flags the user actually set override file values; returning
		// an empty key drops the flag from the merge.
		p := posflag.ProviderWithValue(flags, ".", k, func(name, value string) (string, any) {
			if f := flags.Lookup(name); f == nil || !f.Changed {
				return "", nil
			}
			return flagKey(name), value
		})
		if err := k.Load(p, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAG_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_MALFORMED").With("path", path).Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings a running server cannot do without.
func (c *Config) Validate() error {
	if c.Server == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server identity is required")
	}
	if c.Redis.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("redis address is required")
	}
	if c.Queue.TickInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("queue tick interval must be positive, got %s", c.Queue.TickInterval)
	}
	if c.Queue.ResyncCycles < 1 {
		return oops.Code("CONFIG_INVALID").Errorf("resync cycles must be at least 1, got %d", c.Queue.ResyncCycles)
	}
	if c.Queue.HoldingWindow <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("holding window must be positive, got %s", c.Queue.HoldingWindow)
	}
	return nil
}

// File: config/config.go
// Author: momentics <momentics@gmail.com>
//
// Pipeline configuration with TOML loading. Hot reload is owned by the
// host application; this package only parses and defaults.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Defaults match komorebi's own subscription sizing: one 32 KiB receive
// buffer holds any state notification, and the pool refresh bounds long-run
// memory growth.
const (
	DefaultSocketName = "komorebi-link.sock"
	DefaultBufferSize = 32768
	DefaultBatchSize  = 8
	DefaultLogLevel   = "info"
)

// DefaultRefreshInterval is how often the receive-buffer pool is cleared.
const DefaultRefreshInterval = Duration(600 * time.Second)

// Duration is a time.Duration that (un)marshals as a string like "600s".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", b, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds every tunable of the notification pipeline.
type Config struct {
	// SocketName is the subscription socket's file name inside the
	// workspace manager's data directory.
	SocketName string `toml:"socket_name"`

	// DataDir overrides the per-user data directory holding the socket
	// file. Empty means the workspace manager's default location.
	DataDir string `toml:"data_dir"`

	// BufferSize is the fixed receive-buffer size and therefore the
	// protocol's maximum message size: a notification larger than one
	// buffer is truncated by the single read and dropped at parse time.
	BufferSize int `toml:"buffer_size"`

	// BatchSize bounds how many completions one poller wait may deliver.
	BatchSize int `toml:"batch_size"`

	// RefreshInterval is the buffer-pool clear interval.
	RefreshInterval Duration `toml:"refresh_interval"`

	// SubscribeCommand is the workspace manager CLI invoked with the
	// socket name appended; a non-zero exit aborts the integration.
	SubscribeCommand []string `toml:"subscribe_command"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		SocketName:       DefaultSocketName,
		BufferSize:       DefaultBufferSize,
		BatchSize:        DefaultBatchSize,
		RefreshInterval:  DefaultRefreshInterval,
		SubscribeCommand: []string{"komorebic", "subscribe-socket"},
		LogLevel:         DefaultLogLevel,
	}
}

// Load reads a TOML config file over the defaults. Keys absent from the
// file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	cfg.fillZero()
	return cfg, nil
}

// fillZero restores defaults for fields explicitly set to zero values.
func (c *Config) fillZero() {
	if c.SocketName == "" {
		c.SocketName = DefaultSocketName
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if len(c.SubscribeCommand) == 0 {
		c.SubscribeCommand = []string{"komorebic", "subscribe-socket"}
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// SocketPath resolves the full socket file path, creating the data
// directory if needed.
func (c *Config) SocketPath() (string, error) {
	dir := c.DataDir
	if dir == "" {
		d, err := defaultDataDir()
		if err != nil {
			return "", err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir %q: %w", dir, err)
	}
	return filepath.Join(dir, c.SocketName), nil
}

// defaultDataDir is the workspace manager's per-user data directory.
func defaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "komorebi"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "komorebi"), nil
}

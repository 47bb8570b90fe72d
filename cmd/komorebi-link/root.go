// File: cmd/komorebi-link/root.go
// Author: momentics <momentics@gmail.com>

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/momentics/komorebi-link/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "komorebi-link",
	Short: "Subscribe to komorebi focus notifications over a unix socket",
	Long: `komorebi-link binds a per-user unix domain socket, subscribes it with
the komorebi workspace manager, and turns each pushed workspace snapshot
into minimal window-kind change events for decoration renderers.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides config)")
}

// loadConfig resolves the effective configuration from flags and file.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

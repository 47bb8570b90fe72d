// File: cmd/komorebi-link/run.go
// Author: momentics <momentics@gmail.com>

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/momentics/komorebi-link/internal/logging"
	"github.com/momentics/komorebi-link/komorebi"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the integration, logging every window-kind change",
	Long: `Run binds the subscription socket, subscribes with komorebi, and logs
each window whose kind changes. It stands in for a decoration renderer and
is mainly useful for verifying a komorebi setup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := logging.New(os.Stderr, cfg.LogLevel)

		tracker := komorebi.NewFocusTracker(
			komorebi.WithTrackAll(),
			komorebi.WithTrackerLogger(logger),
		)
		ig := komorebi.NewIntegration(cfg,
			komorebi.WithLogger(logger),
			komorebi.WithTracker(tracker),
		)
		if err := ig.Start(); err != nil {
			return err
		}
		defer ig.Stop()

		go func() {
			for id := range tracker.Changes() {
				logger.Info("window kind changed", "hwnd", id, "kind", tracker.Kind(id))
			}
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

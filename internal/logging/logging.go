// Package logging configures the shared structured logger.
package logging

import (
	"io"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
)

// New builds a charmbracelet logger writing to w at the given level.
// Unknown levels fall back to info.
func New(w io.Writer, level string) *clog.Logger {
	return clog.NewWithOptions(w, clog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           parseLevel(level),
		Prefix:          "komorebi-link",
	})
}

// parseLevel converts a string level to clog.Level.
func parseLevel(level string) clog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return clog.DebugLevel
	case "info":
		return clog.InfoLevel
	case "warn", "warning":
		return clog.WarnLevel
	case "error":
		return clog.ErrorLevel
	default:
		return clog.InfoLevel
	}
}

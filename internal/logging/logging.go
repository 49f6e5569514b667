// Package logging centralizes construction of sdrd's structured
// logger so every component logs through the same sink and format.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// New builds a logger writing to stderr at the given level ("debug",
// "info", "warn", "error"; unrecognized values fall back to "info").
// Components that need a named sub-logger (e.g. "fpga", "recorder")
// should call logger.With("component", name).
func New(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: true,
	})
	logger.SetLevel(parseLevel(level))
	return logger
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

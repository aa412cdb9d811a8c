// Package logging configures the single charmbracelet/log logger instance
// every modda component writes through. Nothing in this package or its
// callers ever logs a credential value.
package logging

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Logger is the process-wide structured logger. Components take it as a
// constructor argument rather than reaching for a package-level global,
// except at the CLI entry point where one is built from environment and
// flags and threaded down.
type Logger = log.Logger

// New builds a Logger writing to stderr, honoring the MODDA_LOG environment
// variable (error, warn, info, debug, trace) and the --verbose/--quiet CLI
// flags, which take precedence over the environment when set explicitly.
func New(verbose, quiet bool) *Logger {
	lvl := levelFromEnv()
	switch {
	case quiet:
		lvl = log.ErrorLevel
	case verbose:
		lvl = log.DebugLevel
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: verbose,
		Level:           lvl,
	})
	return logger
}

func levelFromEnv() log.Level {
	switch strings.ToLower(os.Getenv("MODDA_LOG")) {
	case "error":
		return log.ErrorLevel
	case "warn", "warning":
		return log.WarnLevel
	case "debug":
		return log.DebugLevel
	case "trace":
		// charmbracelet/log has no trace level; debug is the closest fit,
		// so trace and debug produce the same output.
		return log.DebugLevel
	case "info", "":
		return log.InfoLevel
	default:
		return log.InfoLevel
	}
}

// Package logger constructs the process-wide zerolog.Logger used as the
// root for every component's child logger (component loggers are built
// with log.With().Str("component", "...").Logger(), never a package-level
// global — see SPEC_FULL.md §A.1).
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the root logger's verbosity and output format.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to
	// "info" if empty or unrecognized.
	Level string
	// Pretty enables human-readable console output; false uses
	// structured JSON, appropriate for production log shipping.
	Pretty bool
}

// New builds the root logger. Call once at process start and pass the
// result (or a scoped child of it) into every component constructor.
func New(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var writer = os.Stdout
	if cfg.Pretty {
		console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(console).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

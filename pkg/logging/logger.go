// Package logging configures the process-wide zerolog logger for urlcheck.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a minimum log level name.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to console output.
	Pretty bool

	// Output defaults to os.Stderr so stdout stays free for reports.
	Output io.Writer
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup installs a logger built from cfg as the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog level. Matching is
// case-insensitive and "warning" is accepted for warn.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-URL detail
//   - Probe outcome for every attempt (url, status, code, duration)
//   - Scheme switch attempts
//
// Info: session lifecycle
//   - Lock acquired / released
//   - Batch complete (batch, batches, done, total)
//   - Session started / complete (summary counts, minutes)
//   - Server startup/shutdown
//
// Warn: conditions that do not stop a session
//   - Lock marker unreadable (treated as unlocked)
//   - Forced lock release
//   - Check interrupted between batches
//
// Error: conditions requiring attention
//   - Lock store unavailable
//   - Release failed after a session
//   - Runner panic
//
// Context Fields:
//   - component: probe, runner, fetcher, lock, session, server
//   - session_id: UUID of the running session
//   - holder: user holding the lock
//   - url: probed URL
//   - switched_to: alternate-scheme URL
//   - code: HTTP status code or symbolic tag

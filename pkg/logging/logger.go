// Package logging configures structured logging for the extraction engine
// using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Per-page fetches (endpoint, page number, cursor)
//   - Throttle waits (mode, delay)
//   - Query parameter composition
//
// Info: Normal operation events
//   - Extraction start and completion (endpoint, pages, records)
//   - Token refreshes
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts (attempt number, status, backoff)
//   - Record caps reached mid-page
//
// Error: Error conditions requiring attention
//   - Requests failed after retry exhaustion
//   - Authentication failures
//   - Unextractable payloads
//   - Configuration errors
//
// Context Fields:
//   - endpoint: registered endpoint name
//   - page: 1-based page number within an extraction
//   - status: HTTP status code
//   - attempt: retry attempt number
//   - backoff: delay before the next attempt
//   - error_class: error classification (client, server, rate_limit, network)
//   - kind: engine error taxonomy name
//   - mode: throttle mode (sleep, window, redis_window)

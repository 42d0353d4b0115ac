// Package logging configures the engine's structured logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Config controls how Setup builds the root logger.
type Config struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string
	// JSON selects the JSON handler; otherwise a human-readable text handler
	// is used (useful for interactive CLI runs).
	JSON bool
}

// DefaultConfig returns info-level, text-formatted logging to stderr,
// matching the CLI's interactive default.
func DefaultConfig() Config {
	return Config{Level: "info", JSON: false}
}

// Setup builds a slog.Logger per cfg, writing to stderr. It does not set
// the process-wide default logger; callers decide whether to via
// slog.SetDefault.
func Setup(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// SetupDefault builds a logger per cfg and installs it as the process-wide
// default.
func SetupDefault(cfg Config) *slog.Logger {
	logger := Setup(cfg)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

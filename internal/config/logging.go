package config

import (
	"log/slog"
	"os"
)

// BuildLogger constructs an slog.Logger from a LoggingConfig. cfg may be
// nil, in which case an info-level text logger to stderr is returned.
func BuildLogger(cfg *LoggingConfig) *slog.Logger {
	level := slog.LevelInfo

	if cfg != nil {
		switch cfg.Level {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg != nil && cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

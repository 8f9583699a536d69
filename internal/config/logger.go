package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger creates a logger for the configured level and format. It does
// not set the global logger.
func NewLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Logger is NewLogger for c's level and format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return NewLogger(c.LogLevel, c.LogFormat, w)
}

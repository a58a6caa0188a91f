package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup creates a configured *slog.Logger writing to stderr, sets it as the
// default, and returns it.
func Setup(level string) *slog.Logger {
	logger := New(os.Stderr, level)
	slog.SetDefault(logger)
	return logger
}

// New creates a text logger writing to w.
// The level parameter accepts: "debug", "info", "warn", "error" (case-insensitive).
// Defaults to info if the level string is unrecognized.
func New(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With("service", "virtus")
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New constructs a logger with the level from LOG_LEVEL. LOG_FORMAT=json
// switches from the text handler to JSON.
func New(service string) *slog.Logger {
	return NewWriter(os.Stdout, service)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, service string) *slog.Logger {
	return build(w, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")).With("service", service)
}

// Discard returns a logger that drops everything, for tests and optional wiring.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func build(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

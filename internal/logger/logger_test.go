package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel(" DEBUG "))
	require.Equal(t, slog.LevelWarn, parseLevel("warn"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestBuildJSON(t *testing.T) {
	var buf bytes.Buffer
	log := build(&buf, "info", "json").With("service", "api")
	log.Debug("hidden")
	log.Info("dataset loaded", slog.Int("companies", 3))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "dataset loaded", entry["msg"])
	require.Equal(t, "api", entry["service"])
	require.Equal(t, 3.0, entry["companies"])
}

func TestNewWriterTagsService(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	log := NewWriter(&buf, "unicornctl")
	log.Info("hidden")
	log.Warn("skip row", slog.Int("line", 4))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "unicornctl", entry["service"])
	require.Equal(t, 4.0, entry["line"])
}

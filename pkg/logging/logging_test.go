package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/goliatone/go-query-cache/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "warn", Format: config.FormatJSON}, &buf)

	logger.Info("dropped")
	logger.Warn("cache unavailable", slog.String("key", "ecache:book:1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cache unavailable", line["msg"])
	assert.Equal(t, "ecache:book:1", line["key"])
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "debug"}, &buf)

	logger.Debug("compiled", slog.String("entity", "review"))

	assert.Contains(t, buf.String(), "msg=compiled")
	assert.Contains(t, buf.String(), "entity=review")
}

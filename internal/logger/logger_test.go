package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json")
	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))

	log.Info("issued", slog.String("key", "listings/1/a.png"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "issued", entry["msg"])
	assert.Equal(t, "listings/1/a.png", entry["key"])
}

func TestRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "text")
	log.Info("config",
		slog.String("secret_access_key", "wJalrXUtnFEMI"),
		slog.String("signing_key_secret", "LS0tLS1CRUdJTg=="),
		slog.String("Authorization", "Bearer abc"),
		slog.String("bucket", "market-assets"),
	)
	out := buf.String()
	assert.NotContains(t, out, "wJalrXUtnFEMI")
	assert.NotContains(t, out, "LS0tLS1CRUdJTg==")
	assert.NotContains(t, out, "Bearer abc")
	assert.Contains(t, out, "market-assets")
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	custom := New(&buf, "info", "text").With("request_id", "12345")

	ctx := WithContext(context.Background(), custom)
	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "request_id=12345")

	assert.Equal(t, L, FromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLevel(tt.input), tt.input)
	}
}

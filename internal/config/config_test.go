package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"CHATBLOCKS_STORE", "CHAT_MAX_DURATION", "CHAT_MAX_STEPS", "AUTH_SECRET", "REDIS_URL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 60*time.Second, cfg.ChatMaxDuration)
	assert.Equal(t, 5, cfg.MaxSteps)
	assert.Empty(t, cfg.AuthSecret)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CHATBLOCKS_STORE", "surrealdb")
	t.Setenv("CHAT_MAX_DURATION", "90s")
	t.Setenv("CHAT_MAX_STEPS", "3")
	t.Setenv("CHATBLOCKS_CORS_ORIGINS", "https://a.test, https://b.test,")
	t.Setenv("CHATBLOCKS_LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, StoreSurreal, cfg.Store)
	assert.Equal(t, 90*time.Second, cfg.ChatMaxDuration)
	assert.Equal(t, 3, cfg.MaxSteps)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	t.Setenv("CHAT_MAX_STEPS", "many")
	t.Setenv("CHAT_MAX_DURATION", "soon")

	cfg := Load()
	assert.Equal(t, 5, cfg.MaxSteps)
	assert.Equal(t, 60*time.Second, cfg.ChatMaxDuration)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), tt.in)
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("chat streamed", "steps", 2)

	assert.Contains(t, stderr.String(), "chat streamed")
	assert.NotContains(t, stderr.String(), "hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &rec))
	assert.Equal(t, "chat streamed", rec["msg"])
	assert.EqualValues(t, 2, rec["steps"])
}

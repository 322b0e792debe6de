package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("ASSISTANT_HTTP_PORT", "9001")
	t.Setenv("ASSISTANT_MODEL_NAME", "gemini-2.0-flash")
	t.Setenv("ASSISTANT_QUEUE_REQUESTS", "true")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.HTTPPort)
	assert.Equal(t, "gemini-2.0-flash", cfg.ModelName)
	assert.True(t, cfg.QueueRequests)
	assert.Equal(t, ":9001", cfg.GetHTTPAddr())
}

func TestDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBaseWait)
	assert.False(t, cfg.QueueRequests)
	assert.Equal(t, 1000, cfg.MaxMemories)
	assert.Equal(t, 90, cfg.TimingMaxDays)
}

func TestResolveDefaultsValidatesDriver(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "oracle"
	assert.Error(t, cfg.ResolveDefaults())

	cfg.DBDriver = "postgres"
	cfg.PostgresDSN = ""
	assert.Error(t, cfg.ResolveDefaults())

	cfg.PostgresDSN = "postgres://localhost/assistant"
	assert.NoError(t, cfg.ResolveDefaults())
}

func TestNewForTesting(t *testing.T) {
	cfg := NewForTesting()
	assert.True(t, cfg.IsTesting())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, ":memory:", cfg.SQLitePath)
}

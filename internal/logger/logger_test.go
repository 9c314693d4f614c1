package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", "quiet", ""} {
		l, err := New(mode)
		require.NoError(t, err, mode)
		require.NotNil(t, l)
	}
}

func TestRedactsCredentials(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromCore(core)

	l.Info("provider configured", "provider", "openai", "openai_api_key", "sk-live")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "openai", fields["provider"])
	assert.Equal(t, "[REDACTED]", fields["openai_api_key"])
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromCore(core).With("user_id", "u1")

	l.Warn("grading degraded", "reason", "timeout")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].ContextMap()["user_id"])
	assert.Equal(t, "timeout", entries[0].ContextMap()["reason"])
}

func TestOddKeyValues(t *testing.T) {
	out := sanitizeKVs([]any{"a", 1, "dangling"})
	assert.Equal(t, []any{"a", 1, "dangling"}, out)
}

package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xiaoas/noname-server/internal/config"
	"github.com/xiaoas/noname-server/internal/session"
)

func TestNewLogger_JSON(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewLogger_Console(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "console"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := config.LoggingConfig{Level: "trace", Format: "json"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "xml"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestForSession(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := ForSession(zap.New(core), "1234567890")
	logger.Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "1234567890", entries[0].ContextMap()["uid"])
}

func TestStatsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	zap.New(core).Info("registry stats", StatsFields(session.Stats{Sessions: 3, Unauthenticated: 1, Owners: 1, Guests: 1})...)

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, int64(3), ctx["sessions"])
	assert.Equal(t, int64(1), ctx["unauthenticated"])
	assert.Equal(t, int64(1), ctx["owners"])
	assert.Equal(t, int64(1), ctx["guests"])
}

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"pixelforge/internal/config"
)

func TestNewRespectsLevel(t *testing.T) {
	log, err := New(&config.LogConfig{Level: "warn", JSON: true}, false)
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&config.LogConfig{Level: "chatty"}, true)
	assert.ErrorContains(t, err, "LOG_LEVEL")
}

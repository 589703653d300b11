package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wricardo/quizler/settings"
)

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			logger, err := NewLogger(settings.LoggingConfig{Level: level, Format: format})
			require.NoError(t, err, "level %q format %q should be valid", level, format)
			assert.NotNil(t, logger)
		}
	}
}

func TestNewLogger_Level(t *testing.T) {
	logger, err := NewLogger(settings.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(settings.LoggingConfig{Level: "trace", Format: "json"})
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	_, err := NewLogger(settings.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

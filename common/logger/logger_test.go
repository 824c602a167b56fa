package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelOrInfo(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, levelOrInfo("debug"))
	assert.Equal(t, zapcore.WarnLevel, levelOrInfo("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, levelOrInfo("error"))
	assert.Equal(t, zapcore.InfoLevel, levelOrInfo("verbose"))
	assert.Equal(t, zapcore.InfoLevel, levelOrInfo(""))
}

func TestNewLogger_Console(t *testing.T) {
	lg, err := NewLogger("debug", "console", "voltonic-power")
	require.NoError(t, err)
	assert.True(t, lg.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_JSONRespectsLevel(t *testing.T) {
	lg, err := NewLogger("warn", "json", "")
	require.NoError(t, err)
	assert.False(t, lg.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, lg.Core().Enabled(zapcore.WarnLevel))
}

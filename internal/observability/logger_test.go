package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitCLILogger(t *testing.T) {
	InitCLILogger("test", true)
	require.NotNil(t, CLILogger)
	assert.Equal(t, zapcore.DebugLevel, Level())

	InitCLILogger("test", false)
	assert.Equal(t, zapcore.InfoLevel, Level())
}

func TestSetLevel(t *testing.T) {
	InitCLILogger("test", false)
	t.Cleanup(func() { InitCLILogger("test", false) })

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, zapcore.WarnLevel, Level())
	assert.False(t, CLILogger.Core().Enabled(zapcore.InfoLevel))

	require.Error(t, SetLevel("loud"))
	assert.Equal(t, zapcore.WarnLevel, Level())
}

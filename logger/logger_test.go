package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"prod", "PRODUCTION", "dev", ""} {
		l, err := New(mode)
		require.NoError(t, err, mode)
		require.NotNil(t, l.SugaredLogger)
	}
}

func TestRedactsCredentials(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewCore(core).With("component", "api")

	l.Info("request", "auth_token", "s3cret", "Authorization", "Bearer x", "path", "/datasets")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["auth_token"])
	assert.Equal(t, "[REDACTED]", fields["Authorization"])
	assert.Equal(t, "/datasets", fields["path"])
	assert.Equal(t, "api", fields["component"])
}

func TestLevelOption(t *testing.T) {
	l, err := New("dev", WithLevel(zapcore.WarnLevel), WithFields("service", "chatgraph"))
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l.Level())

	core := l.SugaredLogger.Desugar().Core()
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))

	child := l.With("component", "api")
	child.SetLevel(zapcore.DebugLevel)
	assert.Equal(t, zapcore.DebugLevel, l.Level(), "children share the parent's level")
	assert.True(t, core.Enabled(zapcore.DebugLevel))
}

func TestModeDefaultLevels(t *testing.T) {
	prod, err := New("prod")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, prod.Level())

	dev, err := New("dev")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, dev.Level())
}

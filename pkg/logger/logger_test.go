package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/pooling/pkg/errors"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	level, ok := errors.Detail(err, "level")
	require.True(t, ok)
	assert.Equal(t, "loud", level)
}

func TestNewDefaults(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewDevelopmentConsole(t *testing.T) {
	l, err := New(Config{Level: "debug", Development: true, Encoding: "console", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestSetAndL(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	L().Info("pool ready", zap.String("name", "buffers"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "pool ready", entries[0].Message)
	assert.Equal(t, "buffers", entries[0].ContextMap()["name"])
}

func TestSetNilRestoresNop(t *testing.T) {
	Set(nil)
	require.NotNil(t, L())
	assert.False(t, L().Core().Enabled(zapcore.ErrorLevel))
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	assert.Same(t, base, FromContext(context.Background(), base))

	ctx := ContextWithPool(context.Background(), "codecs")
	ctx = ContextWithRunID(ctx, "run-9")
	FromContext(ctx, base).Debug("batch served")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "codecs", fields["pool"])
	assert.Equal(t, "run-9", fields["run_id"])
}

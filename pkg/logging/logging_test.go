package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "internnav.log")
	logger, err := New(zapcore.InfoLevel, path)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("login", zap.String("email", "a@b.c"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"login"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewLevel(t *testing.T) {
	logger, err := New(zapcore.ErrorLevel, "")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

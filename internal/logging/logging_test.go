package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ieql/engine/internal/common/configtypes"
)

func consoleConfig(level string) configtypes.LogConfig {
	return configtypes.LogConfig{
		Level:   level,
		Console: configtypes.ConsoleLogConfig{Enabled: true, Format: "console"},
	}
}

func TestNewRequiresAnEnabledSink(t *testing.T) {
	_, err := New(configtypes.LogConfig{Level: "info"})
	require.Error(t, err)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(consoleConfig("chatty"))
	require.Error(t, err)
}

func TestNewRequiresFilePath(t *testing.T) {
	cfg := configtypes.LogConfig{
		Level: "info",
		File:  configtypes.FileLogConfig{Enabled: true, Format: "json"},
	}
	_, err := New(cfg)
	require.Error(t, err)
}

func TestFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.log")
	cfg := configtypes.LogConfig{
		Level: "info",
		File:  configtypes.FileLogConfig{Enabled: true, Path: path, Format: "json"},
	}
	l, err := New(cfg)
	require.NoError(t, err)

	l.Info("document batch complete")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "document batch complete")
}

func TestStartupLevelIsCappedAtInfo(t *testing.T) {
	l, err := New(consoleConfig("error"))
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, l.level.Level())

	l.ApplyConfiguredLevel()
	assert.Equal(t, zapcore.ErrorLevel, l.level.Level())
}

func TestStartupKeepsVerboseLevel(t *testing.T) {
	l, err := New(consoleConfig("debug"))
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, l.level.Level())
}

func TestRaiseForShutdown(t *testing.T) {
	l, err := New(consoleConfig("error"))
	require.NoError(t, err)
	l.ApplyConfiguredLevel()

	l.RaiseForShutdown()
	assert.Equal(t, zapcore.InfoLevel, l.level.Level())
}

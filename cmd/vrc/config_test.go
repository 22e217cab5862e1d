package main

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/vtable/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vrc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOptionalMissing(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadOptional(t *testing.T) {
	path := writeConfig(t, `
race:
  iterations: 250
  workers: 3
log:
  level: debug
  development: true
`)
	cfg, err := LoadOptional(path)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Race.Iterations)
	assert.Equal(t, 3, cfg.Race.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
}

func TestLoadOptionalKeepsDefaults(t *testing.T) {
	cfg, err := LoadOptional(writeConfig(t, "race:\n  workers: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 10000, cfg.Race.Iterations)
	assert.Equal(t, 2, cfg.Race.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadOptionalErrors(t *testing.T) {
	_, err := LoadOptional(writeConfig(t, "race: [unterminated"))
	assert.Error(t, err)

	_, err = LoadOptional(writeConfig(t, "race:\n  iterations: -1\n"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(LogConfig{Level: "error"}, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))

	l, err = newLogger(LogConfig{Level: "error"}, true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel), "verbose overrides the configured level")

	_, err = newLogger(LogConfig{Level: "nonsense"}, false)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput}))
	assert.Contains(t, err.Error(), "log.level")
}

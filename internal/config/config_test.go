package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Empty(t, config.Charset)
	assert.Equal(t, "warn", config.LogLevel)
	assert.True(t, config.TrimSpaces)
	assert.Equal(t, "\t", config.Separator)

	level, err := config.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbfcat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("charset: cp866\nlog_level: debug\nseparator: \",\"\n"), 0600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "cp866", config.Charset)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, ",", config.Separator)
	// not in the file, so the default holds
	assert.True(t, config.TrimSpaces)

	logger, err := config.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("charset: [unclosed"), 0600))
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	level := filepath.Join(dir, "level.yaml")
	require.NoError(t, os.WriteFile(level, []byte("log_level: loud\n"), 0600))
	_, err = LoadConfig(level)
	assert.Error(t, err)
}

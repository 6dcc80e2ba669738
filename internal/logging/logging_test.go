package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-laue-run-monitor/internal/config"
)

func TestNewCreatesLogDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")
	logger := New(config.Config{
		LogLevel:  "debug",
		LogOutput: []string{"file"},
		LogFile:   filepath.Join(dir, "monitor.log"),
	})
	require.NotNil(t, logger)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewFallsBackToConsole(t *testing.T) {
	logger := New(config.Config{LogLevel: "info"})
	require.NotNil(t, logger)
	logger.Info().Str("component", "test").Msg("console fallback")

	assert.NotNil(t, Discard())
}

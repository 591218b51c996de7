package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"storybook-server/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("invalid level falls back to info", func(t *testing.T) {
		log, err := logger.New(logger.Config{Level: "verbose"}, "")
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("writes json with service field to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		log, err := logger.New(logger.Config{Level: "debug", Encoding: "xml", OutputPath: path}, "storybook-worker")
		require.NoError(t, err)

		log.Info("hello")
		_ = log.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"service":"storybook-worker"`)
		assert.Contains(t, string(data), `"level":"INFO"`)
		assert.Contains(t, string(data), `"timestamp"`)
	})
}

package logger

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/styl-labs/styld/internal/env"
)

func TestNewLevels(t *testing.T) {
	dev := New(env.Development)
	assert.True(t, dev.Enabled(context.Background(), slog.LevelDebug))

	prod := New(env.Production)
	assert.False(t, prod.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, prod.Enabled(context.Background(), slog.LevelInfo))

	quiet := New(env.Development, WithLevel(slog.LevelError))
	assert.False(t, quiet.Enabled(context.Background(), slog.LevelWarn))
}

func TestNewWithLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styld.log")

	log := New(env.Production, WithLogToFile(true), WithLogFile(path))
	require.NotNil(t, log)

	log.Info("Log file smoke test", "path", path)
	assert.FileExists(t, path)
}

package config

import (
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReload(t *testing.T) {
	path := writeConfig(t, validConfigYAML)

	var reloaded atomic.Int32
	watcher, err := NewWatcher(path, "", func(cfg *Config, err error) {
		require.NoError(t, err)
		reloaded.Add(1)
	})
	require.NoError(t, err)

	assert.Equal(t, "1", watcher.Snapshot().Version)
	assert.Equal(t, uint32(0), watcher.ReloadCount())

	updated := strings.Replace(validConfigYAML, `version: "1"`, `version: "2"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	assert.Eventually(t, func() bool {
		return watcher.Snapshot().Version == "2"
	}, 5*time.Second, 50*time.Millisecond)

	assert.GreaterOrEqual(t, watcher.ReloadCount(), uint32(1))
	assert.GreaterOrEqual(t, reloaded.Load(), int32(1))
}

func TestWatcherRejectsBrokenInitialConfig(t *testing.T) {
	path := writeConfig(t, "version: [broken")

	_, err := NewWatcher(path, "", func(*Config, error) {})
	assert.Error(t, err)
}

func TestWatcherKeepsLastGoodConfigOnBrokenReload(t *testing.T) {
	path := writeConfig(t, validConfigYAML)

	errs := make(chan error, 1)
	watcher, err := NewWatcher(path, "", func(_ *Config, err error) {
		if err != nil {
			select {
			case errs <- err:
			default:
			}
		}
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("version: [broken"), 0o644))

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reload error never reported")
	}

	assert.Equal(t, "1", watcher.Snapshot().Version)
}

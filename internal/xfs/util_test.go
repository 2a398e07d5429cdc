package xfs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTilde(t *testing.T) {
	assert.Equal(t, "/var/lib/styld", ExpandTilde("/var/lib/styld"))
	assert.Equal(t, "relative/path", ExpandTilde("relative/path"))
	assert.Equal(t, "~other/models", ExpandTilde("~other/models"))

	expanded := ExpandTilde("~/models")
	assert.NotContains(t, expanded, "~")
	assert.True(t, filepath.IsAbs(expanded))

	assert.True(t, filepath.IsAbs(ExpandTilde("~")))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)

	// Idempotent on an existing directory.
	require.NoError(t, EnsureDir(dir))
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", HumanSize(512))
	assert.Equal(t, "1.0 KB", HumanSize(1024))
	assert.Equal(t, "176.0 MB", HumanSize(176*1024*1024))
	assert.Equal(t, "2.5 GB", HumanSize(int64(2.5*1024*1024*1024)))
}

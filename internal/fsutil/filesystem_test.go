package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileSystem(t *testing.T) {
	m := NewMemoryFileSystem()
	require.NoError(t, m.WriteFile("maps/run.txt", []byte("012"), 0o644))
	require.NoError(t, m.WriteFile("plots/coverage.png", []byte("png"), 0o644))

	data, err := m.ReadFile("maps/./run.txt")
	require.NoError(t, err)
	assert.Equal(t, "012", string(data))
	assert.Equal(t, []string{"maps/run.txt", "plots/coverage.png"}, m.Names())

	data[0] = '2'
	again, _ := m.ReadFile("maps/run.txt")
	assert.Equal(t, "012", string(again), "callers get a copy")

	_, err = m.ReadFile("missing.txt")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestOSFileSystemReplacesFile(t *testing.T) {
	dir := t.TempDir()
	var osfs OSFileSystem
	path := filepath.Join(dir, "nested", "map.txt")

	require.NoError(t, osfs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, osfs.WriteFile(path, []byte("111"), 0o644))
	require.NoError(t, osfs.WriteFile(path, []byte("222"), 0o600))

	data, err := osfs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "222", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestOSFileSystemMissingDir(t *testing.T) {
	var osfs OSFileSystem
	err := osfs.WriteFile(filepath.Join(t.TempDir(), "absent", "map.txt"), nil, 0o644)
	assert.Error(t, err)
}

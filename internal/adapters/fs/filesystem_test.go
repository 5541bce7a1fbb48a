package fs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
)

func TestFileSystem_ModTime(t *testing.T) {
	tmpDir := t.TempDir()
	fsys := fs.NewFileSystem()

	_, ok, err := fsys.ModTime(filepath.Join(tmpDir, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	path := filepath.Join(tmpDir, "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	mtime, ok, err := fsys.ModTime(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, stamp.Equal(mtime))
}

func TestFileSystem_ReadFile(t *testing.T) {
	tmpDir := t.TempDir()
	fsys := fs.NewFileSystem()

	data, ok, err := fsys.ReadFile(filepath.Join(tmpDir, "missing.d"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)

	path := filepath.Join(tmpDir, "a.d")
	require.NoError(t, os.WriteFile(path, []byte("a.o: a.c a.h\n"), 0o600))

	data, ok, err = fsys.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a.o: a.c a.h\n", string(data))

	_, _, err = fsys.ReadFile(tmpDir)
	assert.ErrorContains(t, err, "failed to read file")
}

func TestFileSystem_MkdirAllIsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	fsys := fs.NewFileSystem()

	dir := filepath.Join(tmpDir, "build", "CLI")
	require.NoError(t, fsys.MkdirAll(dir))
	require.NoError(t, fsys.MkdirAll(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileSystem_Remove(t *testing.T) {
	tmpDir := t.TempDir()
	fsys := fs.NewFileSystem()

	path := filepath.Join(tmpDir, "a.o")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	require.NoError(t, fsys.Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing again is not an error.
	require.NoError(t, fsys.Remove(path))
}

func TestFileSystem_RemoveEmptyDir(t *testing.T) {
	tmpDir := t.TempDir()
	fsys := fs.NewFileSystem()

	full := filepath.Join(tmpDir, "full")
	require.NoError(t, os.Mkdir(full, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(full, "keep"), []byte("x"), 0o600))

	empty := filepath.Join(tmpDir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o750))

	require.NoError(t, fsys.RemoveEmptyDir(full))
	require.NoError(t, fsys.RemoveEmptyDir(empty))
	require.NoError(t, fsys.RemoveEmptyDir(filepath.Join(tmpDir, "never-existed")))

	_, err := os.Stat(full)
	require.NoError(t, err)
	_, err = os.Stat(empty)
	assert.True(t, os.IsNotExist(err))
}

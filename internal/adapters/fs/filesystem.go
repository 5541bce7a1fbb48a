package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.FileSystem = (*FileSystem)(nil)

// FileSystem implements ports.FileSystem on top of the os package.
type FileSystem struct{}

// NewFileSystem creates a new FileSystem.
func NewFileSystem() *FileSystem {
	return &FileSystem{}
}

// ModTime returns the modification time of path.
func (f *FileSystem) ModTime(path string) (time.Time, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
	}
	return info.ModTime(), true, nil
}

// ReadFile returns the content of path.
func (f *FileSystem) ReadFile(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from the project layout
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, zerr.With(zerr.Wrap(err, domain.ErrFileReadFailed.Error()), "path", path)
	}
	return data, true, nil
}

// MkdirAll creates path and any missing parents.
func (f *FileSystem) MkdirAll(path string) error {
	if err := os.MkdirAll(path, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrOutputDirCreateFailed.Error()), "path", path)
	}
	return nil
}

// Remove deletes a file, ignoring files that are already gone.
func (f *FileSystem) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, domain.ErrFailedToCleanOutput.Error()), "path", path)
	}
	return nil
}

// RemoveEmptyDir deletes path if it is an empty directory and leaves it alone otherwise.
func (f *FileSystem) RemoveEmptyDir(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil
		}
		return zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
	}
	if len(entries) > 0 {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, domain.ErrFailedToCleanOutput.Error()), "path", path)
	}
	return nil
}

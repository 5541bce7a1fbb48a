package ports

import "time"

// FileSystem is the narrow view of the file system the builder needs.
//
//go:generate go run go.uber.org/mock/mockgen -source=filesystem.go -destination=mocks/mock_filesystem.go -package=mocks
type FileSystem interface {
	// ModTime returns the modification time of path. ok is false when path does not exist.
	ModTime(path string) (mtime time.Time, ok bool, err error)

	// ReadFile returns the content of path. ok is false when path does not exist.
	ReadFile(path string) (data []byte, ok bool, err error)

	// MkdirAll creates path and its parents. An existing directory is not an error.
	MkdirAll(path string) error

	// Remove deletes a file. A missing file is not an error.
	Remove(path string) error

	// RemoveEmptyDir deletes path only if it is an empty directory.
	RemoveEmptyDir(path string) error
}

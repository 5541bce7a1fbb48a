package ports

import (
	"context"
	"iter"
)

// WatchEvent is a debounced batch of file system changes.
type WatchEvent struct {
	// Paths are the absolute paths that changed during the batch window, sorted and unique.
	Paths []string
}

// Watcher defines the interface for watching file system changes.
//
//go:generate go run go.uber.org/mock/mockgen -source=watcher.go -destination=mocks/mock_watcher.go -package=mocks
type Watcher interface {
	// Start begins watching the given root directory recursively.
	// Watching ends when ctx is cancelled or Stop is called.
	Start(ctx context.Context, root string) error
	// Stop stops the watcher and releases all resources.
	Stop() error
	// Events returns an iterator of change batches. It ends once watching has stopped.
	Events() iter.Seq[WatchEvent]
}

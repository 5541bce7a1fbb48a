// Package watcher reports changed source files in debounced batches.
package watcher

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Watcher = (*Watcher)(nil)

// DefaultDebounceWindow is the quiet period that closes a batch of changes.
const DefaultDebounceWindow = 100 * time.Millisecond

const eventChannelBuffer = 16

// skipDirectories are never watched.
var skipDirectories = map[string]bool{
	".git":             true,
	".jj":              true,
	domain.KilnDirName: true,
}

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	logger ports.Logger
	window time.Duration
	skip   map[string]bool

	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	events    chan ports.WatchEvent
	done      chan struct{}

	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
}

// NewWatcher creates a watcher. Directories named in skip are ignored in addition
// to version control and kiln metadata directories.
func NewWatcher(logger ports.Logger, window time.Duration, skip ...string) *Watcher {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	s := make(map[string]bool, len(skipDirectories)+len(skip))
	for name := range skipDirectories {
		s[name] = true
	}
	for _, name := range skip {
		s[name] = true
	}

	return &Watcher{
		logger: logger,
		window: window,
		skip:   s,
		events: make(chan ports.WatchEvent, eventChannelBuffer),
		done:   make(chan struct{}),
	}
}

// Start begins watching root recursively.
func (w *Watcher) Start(ctx context.Context, root string) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return zerr.Wrap(err, "failed to create file watcher")
	}
	w.fsWatcher = fsWatcher
	w.debouncer = NewDebouncer(w.window, w.emit)

	for dir := range w.directories(root) {
		if err := w.fsWatcher.Add(dir); err != nil {
			_ = w.fsWatcher.Close()
			return zerr.With(zerr.Wrap(err, "failed to watch directory"), "path", dir)
		}
	}

	go w.processEvents(ctx)
	return nil
}

// Stop closes the underlying fsnotify watcher, which ends the event stream.
func (w *Watcher) Stop() error {
	if w.fsWatcher == nil {
		return nil
	}
	return w.fsWatcher.Close()
}

// Events returns an iterator over change batches.
func (w *Watcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for event := range w.events {
			if !yield(event) {
				return
			}
		}
	}
}

// directories yields root and every directory below it that is not skipped.
func (w *Watcher) directories(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr // unreadable directories are not watched
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && w.skip[d.Name()] {
				return fs.SkipDir
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}

			w.debouncer.Add(event.Name)

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.skip[info.Name()] {
					for dir := range w.directories(event.Name) {
						_ = w.fsWatcher.Add(dir)
					}
				}
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher: " + err.Error())
		}
	}
}

// emit delivers one batch unless the watcher is shutting down.
func (w *Watcher) emit(paths []string) {
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		return
	}
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	select {
	case w.events <- ports.WatchEvent{Paths: paths}:
	case <-w.done:
	}
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	w.closing = true
	w.mu.Unlock()

	close(w.done)
	w.debouncer.Stop()
	w.inflight.Wait()
	close(w.events)
	_ = w.fsWatcher.Close()
}

// relevant drops attribute-only changes.
func relevant(event fsnotify.Event) bool {
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 500 * time.Millisecond

// LibraryWatcher notifies a callback when the library root changes on disk,
// debouncing bursts of events from a collection build into a single call.
// Typical use is invalidating a collection cache so a freshly built
// collection becomes visible without a restart.
type LibraryWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func()
}

// WatchLibrary starts watching root. The callback runs on the watcher's
// goroutine once Run is started.
func WatchLibrary(root string, debounce time.Duration, onChange func()) (*LibraryWatcher, error) {
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}

	return &LibraryWatcher{
		watcher:  watcher,
		debounce: debounce,
		onChange: onChange,
	}, nil
}

// Run processes events until the context is canceled or the watcher closes.
func (w *LibraryWatcher) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !pending {
				timer.Reset(w.debounce)
				pending = true
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
		case <-timer.C:
			pending = false
			w.onChange()
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *LibraryWatcher) Close() error {
	return w.watcher.Close()
}

package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/logging"
)

// ChangeEvent signals that the capture file changed and settled.
type ChangeEvent struct {
	Path      string
	Timestamp time.Time
}

// CaptureWatcher watches a single capture file so the audit can be
// recomputed when it changes. Bursts of writes (editors, re-exports)
// are coalesced: an event fires only after the file has been quiet for
// the debounce period.
type CaptureWatcher struct {
	watcher   *fsnotify.Watcher
	path      string
	debounce  time.Duration
	events    chan ChangeEvent
	closeOnce sync.Once
}

// NewCaptureWatcher creates a watcher for the given capture file.
func NewCaptureWatcher(path string, debounce time.Duration) (*CaptureWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	// Watch the parent directory, not the file itself: most editors
	// save by writing a temp file and renaming over the target, which
	// kills an inode-level watch.
	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to resolve capture path: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &CaptureWatcher{
		watcher:  fsw,
		path:     abs,
		debounce: debounce,
		events:   make(chan ChangeEvent, 16),
	}, nil
}

// Start begins watching for file changes.
func (w *CaptureWatcher) Start(ctx context.Context) {
	logging.Info("watching capture file", "path", w.path)
	go w.processEvents(ctx)
}

// Events returns the channel of debounced change events.
func (w *CaptureWatcher) Events() <-chan ChangeEvent {
	return w.events
}

// Stop stops the watcher.
func (w *CaptureWatcher) Stop() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
	})
	return err
}

func (w *CaptureWatcher) processEvents(ctx context.Context) {
	flushTimer := time.NewTimer(w.debounce)
	flushTimer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			close(w.events)
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				close(w.events)
				return
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || abs != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = true
			flushTimer.Reset(w.debounce)

		case <-flushTimer.C:
			if !pending {
				continue
			}
			pending = false
			logging.Debug("capture file changed", "path", w.path)
			select {
			case w.events <- ChangeEvent{Path: w.path, Timestamp: time.Now()}:
			default:
				logging.Warn("change event dropped, consumer is behind")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				close(w.events)
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

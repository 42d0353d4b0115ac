package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Kosthi/openace/internal/scanner"
)

// FSWatcher is the default Watcher implementation: fsnotify for OS push
// notifications, with a polling fallback when fsnotify can't be initialized
// (network mounts, some container filesystems).
type FSWatcher struct {
	opts       Options
	fsWatcher  *fsnotify.Watcher
	polling    *pollingSource
	usePolling bool
	debouncer  *Debouncer
	rootPath   string

	events      chan []ChangeEvent
	errors      chan error
	stopCh      chan struct{}
	forwardDone chan struct{}

	mu      sync.RWMutex
	stopped bool
}

var _ Watcher = (*FSWatcher)(nil)

// New creates an FSWatcher. Construction never fails: if fsnotify can't
// initialize, the watcher falls back to polling.
func New(opts Options) *FSWatcher {
	opts = opts.WithDefaults()
	w := &FSWatcher{
		opts:        opts,
		debouncer:   NewDebouncer(opts.DebounceWindow),
		events:      make(chan []ChangeEvent, opts.ChannelCap),
		errors:      make(chan error, 16),
		stopCh:      make(chan struct{}),
		forwardDone: make(chan struct{}),
	}

	if fsw, err := fsnotify.NewWatcher(); err == nil {
		w.fsWatcher = fsw
	} else {
		w.usePolling = true
		w.polling = newPollingSource(opts.PollInterval)
	}

	go w.forwardDebounced()
	return w
}

// Start begins watching path recursively until Stop is called or ctx is
// cancelled.
func (w *FSWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watcher: resolve root: %w", err)
	}
	w.rootPath = absPath

	if w.usePolling {
		return w.runPolling(ctx)
	}
	return w.runFsnotify(ctx)
}

func (w *FSWatcher) runFsnotify(ctx context.Context) error {
	if err := w.addRecursive(w.rootPath); err != nil {
		return fmt.Errorf("watcher: add directories: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *FSWatcher) runPolling(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				cancel()
				return
			case ev, ok := <-w.polling.events():
				if !ok {
					return
				}
				w.debouncer.Add(ev)
			}
		}
	}()
	err := w.polling.run(ctx, w.rootPath)
	select {
	case <-w.stopCh:
		return nil
	default:
		return err
	}
}

func (w *FSWatcher) handleFsnotifyEvent(ev fsnotify.Event) {
	relPath, err := filepath.Rel(w.rootPath, ev.Name)
	if err != nil {
		relPath = ev.Name
	}
	relPath = filepath.ToSlash(relPath)

	switch {
	case ev.Op&fsnotify.Create != 0:
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if scanner.IsEligiblePath(relPath) {
				_ = w.fsWatcher.Add(ev.Name)
			}
			return
		}
		if !scanner.IsEligiblePath(relPath) {
			return
		}
		w.debouncer.Add(rawEvent{path: relPath, op: rawCreate})
	case ev.Op&fsnotify.Write != 0:
		if !scanner.IsEligiblePath(relPath) {
			return
		}
		w.debouncer.Add(rawEvent{path: relPath, op: rawModify})
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		if !scanner.IsEligiblePath(relPath) {
			return
		}
		w.debouncer.Add(rawEvent{path: relPath, op: rawDelete})
	}
}

func (w *FSWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if relPath == "." {
			return w.fsWatcher.Add(path)
		}
		relPath = filepath.ToSlash(relPath)
		if !scanner.IsEligibleDir(relPath) {
			return fs.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// forwardDebounced pumps debounced batches to the events channel. It exits
// only when the debouncer's output closes, so the flush Stop triggers is
// always forwarded before the events channel closes.
func (w *FSWatcher) forwardDebounced() {
	defer close(w.forwardDone)
	for batch := range w.debouncer.Output() {
		if len(batch) == 0 {
			continue
		}
		w.emit(batch)
	}
}

func (w *FSWatcher) emit(batch []ChangeEvent) {
	select {
	case w.events <- batch:
	default:
		slog.Warn("watcher event channel full, dropping batch", slog.Int("batch_size", len(batch)))
	}
}

func (w *FSWatcher) emitError(err error) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher, flushing any buffered-but-undrained events
// atomically before closing the event channel.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)

	// Stopping the debouncer flushes its pending batch and closes its
	// output; wait for the forwarder to finish draining so buffered events
	// reach the caller before the events channel closes.
	w.debouncer.Stop()
	<-w.forwardDone

	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of debounced change-event batches.
func (w *FSWatcher) Events() <-chan []ChangeEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *FSWatcher) Errors() <-chan error {
	return w.errors
}

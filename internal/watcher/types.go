// Package watcher turns OS file-system notifications into a debounced
// change-event stream for the incremental engine.
//
// fsnotify drives the primary path; a polling fallback takes over when
// fsnotify fails to initialize (network mounts, some container filesystems).
// Events are coalesced per path over a 300ms window before being emitted, and
// filtered with the same eligibility rules the scanner applies except
// .gitignore, which OS notifications can't evaluate cheaply.
package watcher

import (
	"context"
	"time"
)

// rawOp is the internal, pre-coalescing operation observed for a path.
type rawOp int

const (
	rawCreate rawOp = iota
	rawModify
	rawDelete
)

// EventKind is the coalesced outcome delivered to callers.
type EventKind int

const (
	// Changed means the path was created or modified and should be
	// (re)indexed.
	Changed EventKind = iota
	// Removed means the path no longer exists and should be deleted from
	// the index.
	Removed
)

func (k EventKind) String() string {
	if k == Removed {
		return "REMOVED"
	}
	return "CHANGED"
}

// ChangeEvent is a single coalesced file-system change.
type ChangeEvent struct {
	Path      string // relative to the watched root, forward-slash normalized
	Kind      EventKind
	Timestamp time.Time
}

// rawEvent is a single uncoalesced observation, keyed by relative path.
type rawEvent struct {
	path string
	op   rawOp
}

// Watcher watches a project root and emits a debounced change-event stream.
type Watcher interface {
	// Start begins watching path recursively. Runs until Stop is called or
	// ctx is cancelled.
	Start(ctx context.Context, path string) error
	// Stop stops the watcher. Any buffered events not yet drained are
	// flushed atomically before the channel closes. Safe to call more than
	// once.
	Stop() error
	// Events returns the channel of debounced event batches. Closed when
	// the watcher stops.
	Events() <-chan []ChangeEvent
	// Errors returns the channel of non-fatal watcher errors.
	Errors() <-chan error
}

// Options configures watcher behavior.
type Options struct {
	// DebounceWindow is how long to coalesce rapid changes to the same
	// path before emitting. Default: 300ms.
	DebounceWindow time.Duration
	// PollInterval is the scan interval used by the polling fallback.
	PollInterval time.Duration
	// ChannelCap bounds the event-batch channel; sends beyond capacity are
	// dropped (lossy). Default: 4096.
	ChannelCap int
}

// DefaultOptions returns the engine's default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 300 * time.Millisecond,
		PollInterval:   5 * time.Second,
		ChannelCap:     4096,
	}
}

// WithDefaults fills zero-valued fields with DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = d.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = d.PollInterval
	}
	if o.ChannelCap == 0 {
		o.ChannelCap = d.ChannelCap
	}
	return o
}

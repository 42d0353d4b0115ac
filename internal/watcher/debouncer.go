package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid raw events per path into a single ChangeEvent,
// emitted after the window elapses. Coalescing rules:
//   - create + modify  -> Changed
//   - create + delete  -> nothing (path never meaningfully existed)
//   - modify + delete  -> Removed
//   - delete + create  -> Changed (path was replaced)
type Debouncer struct {
	window  time.Duration
	pending map[string]rawOp
	mu      sync.Mutex
	output  chan []ChangeEvent
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a Debouncer that flushes coalesced events once
// window has passed without a new Add.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]rawOp),
		output:  make(chan []ChangeEvent, 16),
	}
}

// Add records a raw observation for path, coalescing with anything pending
// for the same path.
func (d *Debouncer) Add(ev rawEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[ev.path]; ok {
		coalesced, drop := coalesce(existing, ev.op)
		if drop {
			delete(d.pending, ev.path)
		} else {
			d.pending[ev.path] = coalesced
		}
	} else {
		d.pending[ev.path] = ev.op
	}

	d.scheduleFlush()
}

// coalesce merges a pending op with a newly observed one. drop is true when
// the pair cancels out (create immediately followed by delete).
func coalesce(existing, next rawOp) (result rawOp, drop bool) {
	switch existing {
	case rawCreate:
		switch next {
		case rawModify:
			return rawCreate, false
		case rawDelete:
			return 0, true
		default:
			return next, false
		}
	case rawModify:
		return next, false
	case rawDelete:
		if next == rawCreate {
			return rawModify, false
		}
		return next, false
	default:
		return next, false
	}
}

func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emitLocked()
}

// emitLocked drains pending into a batch and sends it, non-blocking. Caller
// must hold mu.
func (d *Debouncer) emitLocked() {
	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]ChangeEvent, 0, len(d.pending))
	now := time.Now()
	for path, op := range d.pending {
		kind := Changed
		if op == rawDelete {
			kind = Removed
		}
		events = append(events, ChangeEvent{Path: path, Kind: kind, Timestamp: now})
	}
	d.pending = make(map[string]rawOp)

	select {
	case d.output <- events:
	default:
		slog.Warn("watcher debounce output full, dropping batch", slog.Int("batch_size", len(events)))
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

// Flush forces any pending events out immediately, for use on shutdown so
// buffered-but-undrained events are returned atomically.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.emitLocked()
}

// Stop stops the debouncer, flushing any pending batch first, then closes
// the output channel. Safe to call more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.emitLocked()
	d.stopped = true
	d.mu.Unlock()
	close(d.output)
}

package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectBatch(t *testing.T, d *Debouncer, timeout time.Duration) []ChangeEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_EmitsAfterWindow(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(rawEvent{path: "a.py", op: rawModify})

	batch := collectBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "a.py", batch[0].Path)
	assert.Equal(t, Changed, batch[0].Kind)
}

func TestDebouncer_RapidWritesCoalesceToOneEvent(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	for i := 0; i < 50; i++ {
		d.Add(rawEvent{path: "hot.py", op: rawModify})
	}

	batch := collectBatch(t, d, time.Second)
	assert.Len(t, batch, 1)
}

func TestDebouncer_CoalescingRules(t *testing.T) {
	tests := []struct {
		name string
		ops  []rawOp
		want []EventKind // empty = nothing emitted
	}{
		{"create then modify is changed", []rawOp{rawCreate, rawModify}, []EventKind{Changed}},
		{"create then delete cancels out", []rawOp{rawCreate, rawDelete}, nil},
		{"modify then delete is removed", []rawOp{rawModify, rawDelete}, []EventKind{Removed}},
		{"delete then create is changed", []rawOp{rawDelete, rawCreate}, []EventKind{Changed}},
		{"lone delete is removed", []rawOp{rawDelete}, []EventKind{Removed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(15 * time.Millisecond)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(rawEvent{path: "x.py", op: op})
			}
			d.Flush()

			if len(tt.want) == 0 {
				select {
				case batch := <-d.Output():
					t.Fatalf("expected no events, got %v", batch)
				case <-time.After(50 * time.Millisecond):
				}
				return
			}

			batch := collectBatch(t, d, time.Second)
			require.Len(t, batch, len(tt.want))
			assert.Equal(t, tt.want[0], batch[0].Kind)
		})
	}
}

func TestDebouncer_DistinctPathsShareOneBatch(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(rawEvent{path: "a.py", op: rawModify})
	d.Add(rawEvent{path: "b.py", op: rawDelete})

	batch := collectBatch(t, d, time.Second)
	require.Len(t, batch, 2)

	kinds := map[string]EventKind{}
	for _, e := range batch {
		kinds[e.Path] = e.Kind
	}
	assert.Equal(t, Changed, kinds["a.py"])
	assert.Equal(t, Removed, kinds["b.py"])
}

func TestDebouncer_StopFlushesPending(t *testing.T) {
	d := NewDebouncer(time.Hour) // window never elapses on its own

	d.Add(rawEvent{path: "pending.py", op: rawModify})
	d.Stop()

	batch, ok := <-d.Output()
	require.True(t, ok)
	require.Len(t, batch, 1)
	assert.Equal(t, "pending.py", batch[0].Path)

	// The channel closes after the final flush.
	_, ok = <-d.Output()
	assert.False(t, ok)
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	d.Stop()
	assert.NotPanics(t, func() { d.Stop() })
}

func TestDebouncer_AddAfterStopIsIgnored(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	d.Stop()
	assert.NotPanics(t, func() {
		d.Add(rawEvent{path: "late.py", op: rawModify})
	})
}

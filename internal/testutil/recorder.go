package testutil

import (
	"sync"
	"time"
)

// Recorder collects values passed to a callback, e.g. engine snapshots.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{notify: make(chan struct{}, 1)}
}

// Record appends v. Use the method value as the callback.
func (r *Recorder[T]) Record(v T) {
	r.mu.Lock()
	r.items = append(r.items, v)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// All returns a copy of everything recorded so far.
func (r *Recorder[T]) All() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

// Len returns the number of recorded values.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Last returns the most recent value.
func (r *Recorder[T]) Last() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		var zero T
		return zero, false
	}
	return r.items[len(r.items)-1], true
}

// WaitFor blocks until at least n values were recorded or the timeout
// expires. It reports whether n values arrived.
func (r *Recorder[T]) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if r.Len() >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline:
			return false
		}
	}
}

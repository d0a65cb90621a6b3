package testutil

import (
	"sync"
	"time"
)

// ManualTicker is a ticker driven by the test instead of the wall clock.
// It satisfies engine.Ticker.
//
// Thread-safety: all methods are safe for concurrent use.
type ManualTicker struct {
	ch chan time.Time

	mu      sync.Mutex
	resets  int
	stopped bool
}

// NewManualTicker creates a ticker that only fires on Tick.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time)}
}

// C returns the tick channel.
func (t *ManualTicker) C() <-chan time.Time { return t.ch }

// Reset records a period restart.
func (t *ManualTicker) Reset(time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resets++
}

// Stop marks the ticker stopped.
func (t *ManualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// Tick delivers one tick. It blocks until the receiver takes it.
func (t *ManualTicker) Tick() {
	t.ch <- time.Time{}
}

// Resets returns how many times Reset was called.
func (t *ManualTicker) Resets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resets
}

// Stopped reports whether Stop was called.
func (t *ManualTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

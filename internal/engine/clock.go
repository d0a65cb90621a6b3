package engine

import (
	"sync/atomic"
	"time"
)

// Clock stamps published snapshots with a strictly increasing sequence
// number. Every publication (scan, STOP reset, PAUSE) takes the next
// value, so observers and the scan recorder can order snapshots without
// wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Ticker paces the scan loop. *time.Ticker satisfies it through
// NewTicker; tests substitute a manually driven ticker.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

// NewTicker is the default TickerFunc, backed by time.Ticker. A receiver
// that falls behind misses ticks rather than queueing them, so late scans
// coalesce instead of running back to back.
func NewTicker(d time.Duration) Ticker {
	return wallTicker{t: time.NewTicker(d)}
}

type wallTicker struct {
	t *time.Ticker
}

func (w wallTicker) C() <-chan time.Time  { return w.t.C }
func (w wallTicker) Reset(d time.Duration) { w.t.Reset(d) }
func (w wallTicker) Stop()                 { w.t.Stop() }

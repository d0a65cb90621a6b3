package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/plcscan/internal/ir"
)

// RunIDGenerator produces run identifiers.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids, so ordering
// runs by id is ordering them by creation time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Recorder writes the scans of one run.
//
// Record is meant to be called from the engine's update callback. The
// first write failure is latched: later records are skipped and Err
// reports it, so a broken database never stalls the scan loop with
// repeated errors.
type Recorder struct {
	store *Store
	runID string

	mu      sync.Mutex
	err     error
	written int
}

// StartRun records run and returns a Recorder for its scans. An empty
// run.ID is filled from gen.
func (s *Store) StartRun(ctx context.Context, run ir.RunRecord, gen RunIDGenerator) (*Recorder, error) {
	if run.ID == "" {
		run.ID = gen.Generate()
	}
	if err := s.WriteRun(ctx, run); err != nil {
		return nil, err
	}
	return &Recorder{store: s, runID: run.ID}, nil
}

// RunID returns the id of the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// Record writes scan under the recorder's run. scan.RunID is ignored.
func (r *Recorder) Record(ctx context.Context, scan ir.ScanRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	scan.RunID = r.runID
	inserted, err := r.store.WriteScan(ctx, scan)
	if err != nil {
		r.err = err
		return err
	}
	if inserted {
		r.written++
	}
	return nil
}

// Err returns the first write failure, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Written returns the number of scans recorded.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

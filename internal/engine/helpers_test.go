package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/plcscan/internal/ir"
)

// running creates an engine for p and switches it to RUN.
func running(t *testing.T, p ir.Project, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := New(p, opts...)
	require.NoError(t, err)
	require.NoError(t, e.SetMode(ir.ModeRun))
	return e
}

// scan runs n scans and returns the last snapshot.
func scan(t *testing.T, e *Engine, n int) Snapshot {
	t.Helper()
	var snap Snapshot
	for range n {
		var err error
		snap, err = e.Scan()
		require.NoError(t, err)
	}
	return snap
}

func write(t *testing.T, e *Engine, tag string, v any) {
	t.Helper()
	require.NoError(t, e.WriteTag(tag, ir.MustValueOf(v)))
}

func bit(s Snapshot, tag string) bool {
	return s.Value(tag).Truthy()
}

func num(s Snapshot, tag string) float64 {
	return s.Value(tag).Float()
}

func elem(t *testing.T, s Snapshot, id string) ElementState {
	t.Helper()
	st, ok := s.Element(id)
	require.True(t, ok, "no element %q", id)
	return st
}

const period = 50 * time.Millisecond

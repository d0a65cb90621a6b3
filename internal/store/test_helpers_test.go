package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/plcscan/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestRun(id string) ir.RunRecord {
	return ir.RunRecord{
		ID:            id,
		ProjectName:   "mixer",
		ProjectDigest: "sha256:test",
		PeriodMillis:  50,
	}
}

// createTestScan builds a scan with a BOOL and a REAL tag.
func createTestScan(runID string, seq int64, start bool, level float64) ir.ScanRecord {
	return ir.ScanRecord{
		RunID:  runID,
		Seq:    seq,
		Scans:  seq,
		Mode:   ir.ModeRun,
		Digest: "sha256:scan",
		Tags: []ir.Tag{
			{ID: "start", Value: ir.Bool(start)},
			{ID: "level", Value: ir.Num(level)},
		},
	}
}

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plcscan/internal/ir"
)

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1")))

	changed := createTestRun("run-1")
	changed.ProjectName = "other"
	require.NoError(t, s.WriteRun(ctx, changed))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "mixer", run.ProjectName, "first write wins")
}

func TestWriteRun_EmptyID(t *testing.T) {
	s := createTestStore(t)
	assert.Error(t, s.WriteRun(t.Context(), ir.RunRecord{}))
}

func TestWriteScan_Inserted(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1")))

	inserted, err := s.WriteScan(ctx, createTestScan("run-1", 1, true, 12.5))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.WriteScan(ctx, createTestScan("run-1", 1, false, 0))
	require.NoError(t, err)
	assert.False(t, inserted, "same seq is a no-op")

	scans, err := s.ReadScans(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, ir.Bool(true), scans[0].Tags[0].Value)
}

func TestWriteScan_RequiresRun(t *testing.T) {
	s := createTestStore(t)

	_, err := s.WriteScan(t.Context(), createTestScan("ghost", 1, true, 0))
	assert.Error(t, err, "foreign key on runs")
}

func TestWriteScan_NonFiniteValueRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1")))

	scan := createTestScan("run-1", 1, true, 0)
	scan.Tags[1].Value = ir.Num(posInf())
	_, err := s.WriteScan(ctx, scan)
	require.Error(t, err)

	scans, err := s.ReadScans(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, scans, "scan row rolled back with its tags")
}

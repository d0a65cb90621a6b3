package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plcscan/internal/engine"
	"github.com/roach88/plcscan/internal/ir"
	"github.com/roach88/plcscan/internal/store"
	"github.com/roach88/plcscan/internal/testutil"
)

// recordRun runs timerProject for three scans into a fresh database
// under the run id "run-1" and returns the database path.
func recordRun(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out := &bytes.Buffer{}
	cmd := newRunCommand(&RunOptions{
		RootOptions:    &RootOptions{Format: "json"},
		RunIDGenerator: testutil.NewFixedRunIDGenerator("run-1"),
	})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{timerProject, "--scans", "3", "--db", dbPath})
	require.NoError(t, cmd.ExecuteContext(t.Context()))

	result, _ := decodeResponse[RunResult](t, out.String())
	require.Equal(t, "run-1", result.RunID)
	require.Equal(t, 3, result.Recorded)
	return dbPath
}

func tagValues(tags []TagValue) map[string]ir.Value {
	out := make(map[string]ir.Value, len(tags))
	for _, tv := range tags {
		out[tv.ID] = tv.Value
	}
	return out
}

func TestRun_FixedScansJSON(t *testing.T) {
	out, _, err := execute(t, "run", timerProject, "--scans", "3", "--format", "json")
	require.NoError(t, err)

	result, resp := decodeResponse[RunResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "timer", result.Project)
	assert.Equal(t, int64(3), result.Scans)
	assert.Equal(t, ir.ModeRun, result.Mode)
	assert.Empty(t, result.RunID)

	require.Len(t, result.Tags, 3)
	assert.Equal(t, []string{"start", "done", "lamp"}, []string{result.Tags[0].ID, result.Tags[1].ID, result.Tags[2].ID})
	assert.Equal(t, map[string]ir.Value{
		"start": ir.Bool(true),
		"done":  ir.Bool(true),
		"lamp":  ir.Bool(true),
	}, tagValues(result.Tags))
}

func TestRun_PeriodSlowsTimers(t *testing.T) {
	out, _, err := execute(t, "run", timerProject, "--scans", "3", "--period", "20ms", "--format", "json")
	require.NoError(t, err)

	result, _ := decodeResponse[RunResult](t, out)
	assert.Equal(t, ir.Bool(false), tagValues(result.Tags)["done"], "60ms of a 100ms preset")
}

func TestRun_Watch(t *testing.T) {
	out, _, err := execute(t, "run", timerProject, "--scans", "2", "--watch", "done")
	require.NoError(t, err)

	assert.Contains(t, out, "seq=1 scans=1 mode=RUN done=false\n")
	assert.Contains(t, out, "seq=2 scans=2 mode=RUN done=true\n")
	assert.Contains(t, out, "✓ timer: 2 scan(s), mode RUN\n")
	assert.Contains(t, out, "  done     M0.0     true\n")
	assert.NotContains(t, out, "lamp")
}

func TestRun_RecordsToDatabase(t *testing.T) {
	dbPath := recordRun(t)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "timer", run.ProjectName)
	assert.Equal(t, int64(50), run.PeriodMillis)
	assert.Len(t, run.ProjectDigest, 64)

	scans, err := st.ReadScans(t.Context(), "run-1")
	require.NoError(t, err)
	require.Len(t, scans, 3)
	for i, s := range scans {
		assert.Equal(t, int64(i+1), s.Seq)
		assert.Equal(t, int64(i+1), s.Scans)
		assert.Equal(t, ir.ModeRun, s.Mode)
	}
}

func TestRun_LoopUntilCancelled(t *testing.T) {
	ticker := testutil.NewManualTicker()
	out := &bytes.Buffer{}
	cmd := newRunCommand(&RunOptions{
		RootOptions: &RootOptions{Format: "json"},
		Ticker:      func(time.Duration) engine.Ticker { return ticker },
	})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{timerProject})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	ticker.Tick()
	ticker.Tick()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	result, _ := decodeResponse[RunResult](t, out.String())
	assert.Equal(t, int64(2), result.Scans)
	assert.True(t, ticker.Stopped())
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		contains string
	}{
		{"negative scans", []string{"run", timerProject, "--scans", "-1"}, ExitCommandError, "--scans must not be negative"},
		{"zero period", []string{"run", timerProject, "--period", "0s"}, ExitCommandError, "--period must be positive"},
		{"unknown watch tag", []string{"run", timerProject, "--scans", "1", "--watch", "ghost"}, ExitCommandError, `unknown watch tag "ghost"`},
		{"invalid project", []string{"run", duplicateProject, "--scans", "1"}, ExitFailure, "Error [E102]"},
		{"missing project", []string{"run", "/nonexistent/p.yaml"}, ExitCommandError, "Error [E005]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, out, tt.contains)
		})
	}
}

package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/plcscan/internal/ir"
	"github.com/roach88/plcscan/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional; defaults to the latest run
	Tag      string // optional; restrict to one tag's history
	List     bool   // list runs instead of tracing one
}

// TraceEvent is one recorded snapshot in the timeline.
type TraceEvent struct {
	Seq    int64               `json:"seq"`
	Scans  int64               `json:"scans"`
	Mode   ir.Mode             `json:"mode"`
	Digest string              `json:"digest"`
	Tags   map[string]ir.Value `json:"tags"`
	Forced []string            `json:"forced,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      ir.RunRecord   `json:"run"`
	Timeline []TraceEvent   `json:"timeline,omitempty"`
	Tag      string         `json:"tag,omitempty"`
	History  []ir.TagSample `json:"history,omitempty"`
	Stats    TraceStats     `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Snapshots int `json:"snapshots"`

	// Changes counts snapshots whose tag digest differs from the
	// previous snapshot.
	Changes int `json:"changes"`

	// Modes counts snapshots per mode.
	Modes map[ir.Mode]int `json:"modes"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded scan history",
		Long: `Show the snapshots recorded by 'plcscan run --db'.

Without --run the most recent run is shown. With --tag only that tag's
value history is printed.

Examples:
  plcscan trace --db ./runs.db --list
  plcscan trace --db ./runs.db
  plcscan trace --db ./runs.db --run 0192f... --tag motor
  plcscan trace --db ./runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace (default latest)")
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "show the history of a single tag")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// store.Open creates missing databases; tracing one is always a mistake
	if _, err := os.Stat(opts.Database); errors.Is(err, os.ErrNotExist) {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to open database: %v", err))
	}
	defer st.Close()

	if opts.List {
		runs, err := st.ReadRuns(ctx)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, err.Error())
		}
		return outputRuns(formatter, runs)
	}

	run, err := findRun(ctx, st, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		msg := "no runs recorded"
		if opts.RunID != "" {
			msg = fmt.Sprintf("run not found: %s", opts.RunID)
		}
		return formatter.fail(ExitCommandError, ErrCodeNotFound, msg)
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, err.Error())
	}

	result := TraceResult{Run: run, Tag: opts.Tag}

	if opts.Tag != "" {
		result.History, err = st.ReadTagHistory(ctx, run.ID, opts.Tag)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, err.Error())
		}
		result.Stats = historyStats(result.History)
	} else {
		scans, err := st.ReadScans(ctx, run.ID)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, err.Error())
		}
		result.Timeline = buildTimeline(scans)
		result.Stats = timelineStats(result.Timeline)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func findRun(ctx context.Context, st *store.Store, id string) (ir.RunRecord, error) {
	if id == "" {
		return st.LatestRun(ctx)
	}
	return st.ReadRun(ctx, id)
}

// buildTimeline converts stored scans to timeline events.
func buildTimeline(scans []ir.ScanRecord) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(scans))
	for _, s := range scans {
		ev := TraceEvent{
			Seq:    s.Seq,
			Scans:  s.Scans,
			Mode:   s.Mode,
			Digest: s.Digest,
			Tags:   make(map[string]ir.Value, len(s.Tags)),
		}
		for _, t := range s.Tags {
			ev.Tags[t.ID] = t.Value
			if t.Forced {
				ev.Forced = append(ev.Forced, t.ID)
			}
		}
		timeline = append(timeline, ev)
	}
	return timeline
}

func timelineStats(timeline []TraceEvent) TraceStats {
	stats := TraceStats{Snapshots: len(timeline), Modes: map[ir.Mode]int{}}
	prev := ""
	for i, ev := range timeline {
		stats.Modes[ev.Mode]++
		if i > 0 && ev.Digest != prev {
			stats.Changes++
		}
		prev = ev.Digest
	}
	return stats
}

func historyStats(history []ir.TagSample) TraceStats {
	stats := TraceStats{Snapshots: len(history), Modes: map[ir.Mode]int{}}
	for i := 1; i < len(history); i++ {
		if !history[i].Value.Equal(history[i-1].Value) || history[i].Forced != history[i-1].Forced {
			stats.Changes++
		}
	}
	return stats
}

func outputRuns(formatter *OutputFormatter, runs []ir.RunRecord) error {
	if formatter.JSON() {
		return formatter.Success(runs)
	}
	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  period=%dms\n", r.ID, displayName(r.ProjectName, "(unnamed)"), r.PeriodMillis)
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Project: %s (%s)\n", displayName(result.Run.ProjectName, "(unnamed)"), truncateID(result.Run.ProjectDigest))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	switch {
	case result.Tag != "" && len(result.History) == 0:
		fmt.Fprintf(w, "  (no values recorded for %s)\n", result.Tag)
	case result.Tag != "":
		for _, s := range result.History {
			forced := ""
			if s.Forced {
				forced = " (forced)"
			}
			fmt.Fprintf(w, "  [%d] %s=%s%s\n", s.Seq, result.Tag, s.Value, forced)
		}
	case len(result.Timeline) == 0:
		fmt.Fprintln(w, "  (no snapshots)")
	default:
		for _, ev := range result.Timeline {
			fmt.Fprintf(w, "  [%d] %s scans=%d %s\n", ev.Seq, ev.Mode, ev.Scans, formatTags(ev.Tags))
			if len(ev.Forced) > 0 {
				fmt.Fprintf(w, "       forced: %s\n", strings.Join(ev.Forced, ", "))
			}
			if verbose {
				fmt.Fprintf(w, "       digest: %s\n", truncateID(ev.Digest))
			}
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Snapshots: %d\n", result.Stats.Snapshots)
	fmt.Fprintf(w, "  Changes:   %d\n", result.Stats.Changes)
	for _, m := range []ir.Mode{ir.ModeRun, ir.ModePause, ir.ModeStop} {
		if n := result.Stats.Modes[m]; n > 0 {
			fmt.Fprintf(w, "  %-9s  %d\n", string(m)+":", n)
		}
	}
}

// formatTags renders tag values with sorted keys for deterministic output.
func formatTags(tags map[string]ir.Value) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, tags[k])
	}
	return strings.Join(parts, " ")
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

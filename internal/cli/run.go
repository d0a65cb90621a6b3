package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/plcscan/internal/engine"
	"github.com/roach88/plcscan/internal/ir"
	"github.com/roach88/plcscan/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Period   time.Duration
	Scans    int
	Database string
	Watch    []string

	// RunIDGenerator overrides the recorded run id generator (for
	// testing). If nil, defaults to store.UUIDv7Generator.
	RunIDGenerator store.RunIDGenerator

	// Ticker overrides the scan loop ticker (for testing).
	Ticker engine.TickerFunc
}

// TagValue is one tag in the run summary.
type TagValue struct {
	ID      string   `json:"id"`
	Address string   `json:"address"`
	Value   ir.Value `json:"value"`
	Forced  bool     `json:"forced,omitempty"`
}

// RunResult summarizes an engine session.
type RunResult struct {
	Project  string     `json:"project"`
	RunID    string     `json:"run_id,omitempty"`
	Scans    int64      `json:"scans"`
	Mode     ir.Mode    `json:"mode"`
	Recorded int        `json:"recorded,omitempty"`
	Tags     []TagValue `json:"tags"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <project>",
		Short: "Run a project in the scan-cycle engine",
		Long: `Load a project, switch the engine to RUN and scan it.

With --scans N the engine performs exactly N scans back to back and
exits; timers and the PID controller still advance by --period per scan.
Without --scans the engine scans every --period until interrupted.

With --db every published snapshot is recorded to a SQLite database
(created if it doesn't exist) for later inspection with 'plcscan trace'.

Examples:
  plcscan run ./project.yaml --scans 10
  plcscan run ./project.yaml --period 100ms --watch start,motor
  plcscan run ./project.yaml --db ./runs.db --scans 50 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Period, "period", engine.DefaultScanPeriod, "scan period")
	cmd.Flags().IntVar(&opts.Scans, "scans", 0, "number of scans to run (0 runs until interrupted)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to record snapshots")
	cmd.Flags().StringSliceVar(&opts.Watch, "watch", nil, "tags to print after every published snapshot")

	return cmd
}

func runEngine(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.Scans < 0 {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("--scans must not be negative, got %d", opts.Scans))
	}
	if opts.Period <= 0 {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("--period must be positive, got %s", opts.Period))
	}

	loaded, err := LoadProject(path)
	if err != nil {
		return failLoad(formatter, err)
	}
	for _, id := range opts.Watch {
		if _, ok := loaded.Program.TagIndex(id); !ok {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("unknown watch tag %q", id))
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var recorder *store.Recorder
	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to open database: %v", err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		recorder, err = startRecording(ctx, st, loaded, opts)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, err.Error())
		}
		logger.Info("recording run", "run_id", recorder.RunID())
	}

	onUpdate := func(snap engine.Snapshot) {
		if recorder != nil {
			rec, err := snap.Record()
			if err == nil {
				err = recorder.Record(ctx, rec)
			}
			if err != nil {
				logger.Error("record snapshot failed", "seq", snap.Seq, "error", err)
			}
		}
		if len(opts.Watch) > 0 && !formatter.JSON() {
			printWatch(formatter.Writer, snap, opts.Watch)
		}
	}

	engOpts := []engine.EngineOption{
		engine.WithScanPeriod(opts.Period),
		engine.WithLogger(logger),
		engine.WithUpdateFunc(onUpdate),
	}
	if opts.Ticker != nil {
		engOpts = append(engOpts, engine.WithTicker(opts.Ticker))
	}
	eng, err := engine.New(loaded.Project, engOpts...)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeRunFailed, err.Error())
	}
	if err := eng.SetMode(ir.ModeRun); err != nil {
		return formatter.fail(ExitFailure, ErrCodeRunFailed, err.Error())
	}

	if opts.Scans > 0 {
		logger.Debug("running fixed scans", "scans", opts.Scans, "period", opts.Period)
		for range opts.Scans {
			if _, err := eng.Scan(); err != nil {
				return formatter.fail(ExitFailure, ErrCodeRunFailed, err.Error())
			}
		}
	} else if err := runLoop(ctx, eng, formatter); err != nil {
		return formatter.fail(ExitFailure, ErrCodeRunFailed, err.Error())
	}

	if recorder != nil {
		if err := recorder.Err(); err != nil {
			return formatter.fail(ExitFailure, ErrCodeDatabase, fmt.Sprintf("recording failed: %v", err))
		}
	}

	return outputRunResult(formatter, summarize(loaded, eng.Snapshot(), recorder, opts.Watch))
}

func startRecording(ctx context.Context, st *store.Store, loaded *LoadedProject, opts *RunOptions) (*store.Recorder, error) {
	digest, err := ir.ProjectDigest(loaded.Program.Project)
	if err != nil {
		return nil, err
	}
	gen := opts.RunIDGenerator
	if gen == nil {
		gen = store.UUIDv7Generator{}
	}
	return st.StartRun(ctx, ir.RunRecord{
		ProjectName:   loaded.Project.Name,
		ProjectDigest: digest,
		PeriodMillis:  opts.Period.Milliseconds(),
	}, gen)
}

// runLoop scans periodically until ctx is done or the process receives
// SIGINT/SIGTERM.
func runLoop(ctx context.Context, eng *engine.Engine, formatter *OutputFormatter) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !formatter.JSON() {
		fmt.Fprintf(formatter.Writer, "Scanning every %s. Press Ctrl-C to stop.\n", eng.Period())
	}

	err := eng.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// printWatch writes one line per published snapshot with the watched
// tags in flag order.
func printWatch(w io.Writer, snap engine.Snapshot, watch []string) {
	var b strings.Builder
	fmt.Fprintf(&b, "seq=%d scans=%d mode=%s", snap.Seq, snap.Scans, snap.Mode)
	for _, id := range watch {
		fmt.Fprintf(&b, " %s=%s", id, snap.Value(id))
	}
	fmt.Fprintln(w, b.String())
}

// summarize builds the run result. With a watch list only the watched
// tags are reported.
func summarize(loaded *LoadedProject, snap engine.Snapshot, recorder *store.Recorder, watch []string) RunResult {
	result := RunResult{
		Project: loaded.Project.Name,
		Scans:   snap.Scans,
		Mode:    snap.Mode,
		Tags:    []TagValue{},
	}
	if recorder != nil {
		result.RunID = recorder.RunID()
		result.Recorded = recorder.Written()
	}
	for _, t := range snap.Tags {
		if len(watch) > 0 && !slices.Contains(watch, t.ID) {
			continue
		}
		result.Tags = append(result.Tags, TagValue{ID: t.ID, Address: t.Address, Value: t.Value, Forced: t.Forced})
	}
	return result
}

func outputRunResult(formatter *OutputFormatter, result RunResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ %s: %d scan(s), mode %s\n", displayName(result.Project, "project"), result.Scans, result.Mode)
	if result.RunID != "" {
		fmt.Fprintf(w, "  run %s (%d snapshot(s) recorded)\n", result.RunID, result.Recorded)
	}
	for _, t := range result.Tags {
		forced := ""
		if t.Forced {
			forced = " (forced)"
		}
		fmt.Fprintf(w, "  %-8s %-8s %s%s\n", t.ID, t.Address, t.Value, forced)
	}
	return nil
}

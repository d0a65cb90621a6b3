package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/plcscan/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	Golden string // golden directory; defaults to <scenarios-dir>/golden
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files against the engine",
		Long: `Run scenario files through the conformance harness.

Each scenario drives a fresh engine through mode changes, tag writes,
forces and scans, checking expectations along the way. When a golden
file named after the scenario exists, the recorded trace must match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  plcscan test ./scenarios
  plcscan test ./scenarios --filter "ton_*"
  plcscan test ./scenarios --update
  plcscan test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden file directory (default <scenarios-dir>/golden)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	info, err := os.Stat(scenariosDir)
	if errors.Is(err, os.ErrNotExist) {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	if err != nil || !info.IsDir() {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("not a directory: %s", scenariosDir))
	}

	paths, err := harness.FindScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeScanError, err.Error())
	}
	formatter.VerboseLog("Found %d scenario file(s) in %s", len(paths), scenariosDir)

	if len(paths) == 0 {
		if formatter.JSON() {
			return formatter.Success(&harness.SuiteResult{Scenarios: []harness.ScenarioResult{}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	goldenDir := opts.Golden
	if goldenDir == "" {
		goldenDir = filepath.Join(scenariosDir, "golden")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := harness.RunSuite(ctx, paths,
		harness.WithGoldenDir(goldenDir, opts.Update),
		harness.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())),
	)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// outputTestJSON outputs the suite result as JSON.
func outputTestJSON(formatter *OutputFormatter, result *harness.SuiteResult) error {
	if result.Failed == 0 {
		return formatter.Success(result)
	}

	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if err := formatter.Failure(result, ErrCodeTestFailed, msg); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

// outputTestText outputs one line per scenario and a summary.
func outputTestText(formatter *OutputFormatter, result *harness.SuiteResult) error {
	w := formatter.Writer

	for _, s := range result.Scenarios {
		name := s.Name
		if name == "" {
			name = filepath.Base(s.Path)
		}
		switch {
		case !s.Pass:
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range s.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		case s.GoldenUpdated:
			fmt.Fprintf(w, "✓ %s (golden updated)\n", name)
		default:
			fmt.Fprintf(w, "✓ %s\n", name)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

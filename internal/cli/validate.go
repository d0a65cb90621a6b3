package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/plcscan/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat warnings as failures
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Project  string                     `json:"project"`
	Tags     int                        `json:"tags"`
	Elements int                        `json:"elements"`
	Warnings []compiler.ValidationError `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <project>",
		Short: "Check a project without running it",
		Long: `Load and link a ladder project and report suspicious constructs.

A project that does not link (containment cycle, duplicate ids, unknown
instruction kinds, malformed elements) is invalid. Warnings such as
dangling tag references or writes to input tags do not stop the project
from running unless --strict is given.

Exit codes:
  0 - Project valid
  1 - Project invalid (or warnings with --strict)
  2 - Command error (file not found, decode error)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail when warnings are reported")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	formatter.VerboseLog("Loading project %s", path)
	loaded, err := LoadProject(path)
	if err != nil {
		return failLoad(formatter, err)
	}

	warnings := compiler.Validate(loaded.Program)
	instructions, branches := countElements(loaded.Program)
	result := ValidationResult{
		Valid:    !(opts.Strict && len(warnings) > 0),
		Project:  loaded.Project.Name,
		Tags:     len(loaded.Project.Tags),
		Elements: instructions + branches,
		Warnings: warnings,
	}

	if formatter.JSON() {
		if !result.Valid {
			if err := formatter.Failure(result, ErrCodeWarnings, warningSummary(warnings)); err != nil {
				return err
			}
			return NewExitError(ExitFailure, warningSummary(warnings))
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	if result.Valid {
		fmt.Fprintf(w, "✓ %s valid (%d tags, %d elements)\n", displayName(result.Project, path), result.Tags, result.Elements)
	} else {
		fmt.Fprintf(w, "✗ %s: %s\n", displayName(result.Project, path), warningSummary(warnings))
	}
	for _, warn := range warnings {
		fmt.Fprintf(w, "  %s %s: %s\n", warn.Code, warn.Field, warn.Message)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, warningSummary(warnings))
	}
	return nil
}

func warningSummary(warnings []compiler.ValidationError) string {
	return fmt.Sprintf("%d warning(s)", len(warnings))
}

func displayName(name, path string) string {
	if name != "" {
		return name
	}
	return path
}

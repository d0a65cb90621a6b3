package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the linked program and its summary.
type CompilationResult struct {
	Project string            `json:"project"`
	Digest  string            `json:"digest"`
	Stats   CompilationStats  `json:"stats"`
	Program *compiler.Program `json:"program"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	Networks     int `json:"networks"`
	Rungs        int `json:"rungs"`
	Instructions int `json:"instructions"`
	Branches     int `json:"branches"`
	Tags         int `json:"tags"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <project>",
		Short: "Link a project into its executable program",
		Long: `Link a ladder project and print the flattened program.

The program is the arena the engine evaluates: one node per element,
branch groups as index lists, tag references resolved to tag indices.
With --output the program is written to a JSON file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	formatter.VerboseLog("Loading project %s", path)
	loaded, err := LoadProject(path)
	if err != nil {
		return failLoad(formatter, err)
	}

	digest, err := ir.ProjectDigest(loaded.Program.Project)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	result := &CompilationResult{
		Project: loaded.Project.Name,
		Digest:  digest,
		Stats:   calculateStats(loaded.Program),
		Program: loaded.Program,
	}

	if opts.Output != "" {
		if err := writeProgramToFile(result, opts.Output); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
		formatter.VerboseLog("Wrote program to %s", opts.Output)
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// calculateStats computes summary statistics for a linked program.
func calculateStats(prog *compiler.Program) CompilationStats {
	stats := CompilationStats{
		Networks: len(prog.Networks),
		Tags:     len(prog.Project.Tags),
	}
	for _, n := range prog.Networks {
		stats.Rungs += len(n.Rungs)
	}
	stats.Instructions, stats.Branches = countElements(prog)
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	s := result.Stats
	fmt.Fprintf(w, "✓ Compiled %s\n\n", result.Project)
	fmt.Fprintf(w, "  networks:     %d\n", s.Networks)
	fmt.Fprintf(w, "  rungs:        %d\n", s.Rungs)
	fmt.Fprintf(w, "  instructions: %d\n", s.Instructions)
	fmt.Fprintf(w, "  branches:     %d\n", s.Branches)
	fmt.Fprintf(w, "  tags:         %d\n", s.Tags)
	fmt.Fprintf(w, "  digest:       %s\n", result.Digest)

	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote program to %s\n", outputFile)
	}
	return nil
}

// writeProgramToFile writes the compilation result as indented JSON.
func writeProgramToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling program: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SuiteResult summarizes a run over many scenario files.
type SuiteResult struct {
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name,omitempty"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	// GoldenUpdated is set when the run rewrote the scenario's golden file.
	GoldenUpdated bool `json:"golden_updated,omitempty"`
}

// Failures returns the scenarios that did not pass, in run order.
func (r *SuiteResult) Failures() []ScenarioResult {
	var out []ScenarioResult
	for _, s := range r.Scenarios {
		if !s.Pass {
			out = append(out, s)
		}
	}
	return out
}

// WithGoldenDir compares each scenario's trace against
// dir/<scenario name>.golden. Scenarios without a golden file are judged
// on their expectations alone. With update set, the golden file is
// rewritten instead of compared.
//
// Only RunSuite honours this option.
func WithGoldenDir(dir string, update bool) Option {
	return func(h *Harness) {
		h.goldenDir = dir
		h.updateGolden = update
	}
}

// FindScenarios returns the scenario files under dir (recursively), in
// lexical order. A non-empty filter is a filepath.Match pattern applied
// to the file's base name without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
		}
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find scenarios: %w", err)
	}
	slices.Sort(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario in paths.
//
// A scenario that cannot be loaded or set up counts as failed; the suite
// keeps going. Only context cancellation aborts the suite.
func RunSuite(ctx context.Context, paths []string, opts ...Option) (*SuiteResult, error) {
	cfg := &Harness{}
	for _, opt := range opts {
		opt(cfg)
	}

	result := &SuiteResult{Scenarios: []ScenarioResult{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr := runOne(ctx, cfg, path, opts)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}
	return result, nil
}

func runOne(ctx context.Context, cfg *Harness, path string, opts []Option) ScenarioResult {
	sr := ScenarioResult{Path: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	result, err := Run(ctx, scenario, opts...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return sr
	}
	if !result.Pass {
		sr.Errors = result.Errors
		return sr
	}

	if cfg.goldenDir != "" {
		updated, err := checkGolden(cfg.goldenDir, cfg.updateGolden, scenario.Name, result)
		if err != nil {
			sr.Errors = []string{err.Error()}
			return sr
		}
		sr.GoldenUpdated = updated
	}

	sr.Pass = true
	return sr
}

// checkGolden compares or rewrites the golden trace for one scenario.
// It reports whether the file was written.
func checkGolden(dir string, update bool, name string, result *Result) (bool, error) {
	data, err := MarshalTrace(name, result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal trace: %w", err)
	}
	path := filepath.Join(dir, name+".golden")

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return false, fmt.Errorf("failed to write golden file: %w", err)
		}
		return true, nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return false, fmt.Errorf("trace does not match golden file %s (run with --update to regenerate)", path)
	}
	return false, nil
}

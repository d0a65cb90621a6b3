package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/ir"
)

// Scenario is a scripted engine session with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Project is the path of the project file. Relative paths are
	// resolved against the scenario file's directory.
	Project string `yaml:"project,omitempty"`

	// Inline holds the project document itself, in the YAML project
	// format. Exactly one of Project and Inline must be set.
	Inline yaml.Node `yaml:"inline,omitempty"`

	// Period is the scan period, e.g. "50ms". Defaults to the engine's.
	Period string `yaml:"period,omitempty"`

	// RunID fixes the recorded run id. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	Steps []Step `yaml:"steps"`

	// baseDir resolves relative paths in Project and update steps.
	baseDir string
}

// Step is one scenario action. Exactly one of Mode, Write, Force, Scan,
// Update and Expect is set.
type Step struct {
	Mode   string  `yaml:"mode,omitempty"`
	Write  *Write  `yaml:"write,omitempty"`
	Force  *Force  `yaml:"force,omitempty"`
	Scan   int     `yaml:"scan,omitempty"`
	Update string  `yaml:"update,omitempty"`
	Expect *Expect `yaml:"expect,omitempty"`

	// Error is the runtime error code the step must fail with.
	Error string `yaml:"error,omitempty"`
}

// Write sets a tag value from outside the program.
type Write struct {
	Tag   string `yaml:"tag"`
	Value any    `yaml:"value"`
}

// Force sets a tag's force flag, and its value when Value is present.
type Force struct {
	Tag    string `yaml:"tag"`
	Forced bool   `yaml:"forced"`
	Value  any    `yaml:"value,omitempty"`
}

// Expect checks the committed engine state. Only listed tags and
// elements are compared.
type Expect struct {
	Mode     string                   `yaml:"mode,omitempty"`
	Scans    *int64                   `yaml:"scans,omitempty"`
	Tags     map[string]any           `yaml:"tags,omitempty"`
	Forced   map[string]bool          `yaml:"forced,omitempty"`
	Elements map[string]ElementExpect `yaml:"elements,omitempty"`
}

// ElementExpect lists the observation fields to check on one element.
type ElementExpect struct {
	IsActive     *bool    `yaml:"isActive,omitempty"`
	PowerFlowOut *bool    `yaml:"powerFlowOut,omitempty"`
	Current      *float64 `yaml:"current,omitempty"`
}

// Step kinds, as reported in failure messages.
const (
	StepMode   = "mode"
	StepWrite  = "write"
	StepForce  = "force"
	StepScan   = "scan"
	StepUpdate = "update"
	StepExpect = "expect"
)

// Kind names the action the step performs.
func (s Step) Kind() string {
	switch {
	case s.Mode != "":
		return StepMode
	case s.Write != nil:
		return StepWrite
	case s.Force != nil:
		return StepForce
	case s.Scan != 0:
		return StepScan
	case s.Update != "":
		return StepUpdate
	case s.Expect != nil:
		return StepExpect
	default:
		return ""
	}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses a scenario document. baseDir resolves relative
// project paths.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.baseDir = baseDir

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// resolve makes a scenario-relative path usable.
func (s *Scenario) resolve(path string) string {
	if filepath.IsAbs(path) || s.baseDir == "" {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

// LoadProject returns the scenario's project, from file or inline.
func (s *Scenario) LoadProject() (ir.Project, error) {
	if s.Project != "" {
		return compiler.LoadProject(s.resolve(s.Project))
	}
	data, err := yaml.Marshal(&s.Inline)
	if err != nil {
		return ir.Project{}, fmt.Errorf("inline project: %w", err)
	}
	return compiler.ParseProjectYAML(data)
}

// ScanPeriod returns the parsed period, or 0 when unset.
func (s *Scenario) ScanPeriod() (time.Duration, error) {
	if s.Period == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Period)
	if err != nil {
		return 0, fmt.Errorf("period: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("period must be positive, got %s", s.Period)
	}
	return d, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	hasInline := s.Inline.Kind != 0
	switch {
	case s.Project == "" && !hasInline:
		return fmt.Errorf("project or inline is required")
	case s.Project != "" && hasInline:
		return fmt.Errorf("project and inline are mutually exclusive")
	case hasInline && s.Inline.Kind != yaml.MappingNode:
		return fmt.Errorf("inline must be a mapping")
	}

	if s.Project != "" {
		if _, err := os.Stat(s.resolve(s.Project)); os.IsNotExist(err) {
			return fmt.Errorf("project file not found: %s", s.Project)
		}
	}

	if _, err := s.ScanPeriod(); err != nil {
		return err
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its kind.
func validateStep(index int, s Step) error {
	set := 0
	for _, ok := range []bool{s.Mode != "", s.Write != nil, s.Force != nil, s.Scan != 0, s.Update != "", s.Expect != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of mode, write, force, scan, update, expect is required", index)
	}

	switch s.Kind() {
	case StepMode:
		if _, ok := ir.ParseMode(s.Mode); !ok && s.Error == "" {
			return fmt.Errorf("steps[%d]: unknown mode %q", index, s.Mode)
		}
	case StepWrite:
		if s.Write.Tag == "" {
			return fmt.Errorf("steps[%d]: write.tag is required", index)
		}
		if _, err := ir.ValueOf(s.Write.Value); err != nil {
			return fmt.Errorf("steps[%d]: write.value: %w", index, err)
		}
	case StepForce:
		if s.Force.Tag == "" {
			return fmt.Errorf("steps[%d]: force.tag is required", index)
		}
		if s.Force.Value != nil {
			if _, err := ir.ValueOf(s.Force.Value); err != nil {
				return fmt.Errorf("steps[%d]: force.value: %w", index, err)
			}
		}
	case StepScan:
		if s.Scan < 0 {
			return fmt.Errorf("steps[%d]: scan count must be positive", index)
		}
	case StepExpect:
		if s.Error != "" {
			return fmt.Errorf("steps[%d]: expect cannot carry an error", index)
		}
		if s.Expect.Mode != "" {
			if _, ok := ir.ParseMode(s.Expect.Mode); !ok {
				return fmt.Errorf("steps[%d]: expect.mode: unknown mode %q", index, s.Expect.Mode)
			}
		}
		for tag, v := range s.Expect.Tags {
			if _, err := ir.ValueOf(v); err != nil {
				return fmt.Errorf("steps[%d]: expect.tags.%s: %w", index, tag, err)
			}
		}
	}

	return nil
}

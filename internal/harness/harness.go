package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/engine"
	"github.com/roach88/plcscan/internal/ir"
	"github.com/roach88/plcscan/internal/store"
	"github.com/roach88/plcscan/internal/testutil"
)

// Harness executes one scenario against a fresh engine.
type Harness struct {
	scenario *Scenario
	engine   *engine.Engine
	store    *store.Store
	recorder *store.Recorder
	logger   *slog.Logger

	goldenDir    string
	updateGolden bool
}

// Option configures a harness run.
type Option func(*Harness)

// WithLogger sets the logger for step progress and engine events.
// Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database and a fresh engine.
// Execution stops at the first step that fails; the trace still holds
// everything published up to that point.
//
// The returned error reports a scenario that could not be set up (bad
// project, store failure). Behavioural mismatches are reported in the
// result instead.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		scenario: scenario,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}

	project, err := scenario.LoadProject()
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	period, err := scenario.ScanPeriod()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	engOpts := []engine.EngineOption{
		engine.WithLogger(h.logger),
		engine.WithUpdateFunc(h.record(ctx)),
	}
	if period > 0 {
		engOpts = append(engOpts, engine.WithScanPeriod(period))
	}
	eng, err := engine.New(project, engOpts...)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	h.engine = eng

	digest, err := ir.ProjectDigest(eng.Program().Project)
	if err != nil {
		return nil, fmt.Errorf("digest project: %w", err)
	}
	h.recorder, err = st.StartRun(ctx, ir.RunRecord{
		ProjectName:   project.Name,
		ProjectDigest: digest,
		PeriodMillis:  eng.Period().Milliseconds(),
	}, testutil.NewFixedRunIDGenerator(scenario.RunID))
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if msg := h.execute(i, step); msg != "" {
			result.AddError(msg)
			break
		}
		h.logger.Debug("step completed", "scenario", scenario.Name, "step", i, "kind", step.Kind())
	}

	if err := h.recorder.Err(); err != nil {
		return nil, fmt.Errorf("record scans: %w", err)
	}
	scans, err := st.ReadScans(ctx, h.recorder.RunID())
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	for _, rec := range scans {
		result.Trace = append(result.Trace, traceFromRecord(rec))
	}

	return result, nil
}

// record returns the engine update callback that persists every
// published snapshot.
func (h *Harness) record(ctx context.Context) engine.UpdateFunc {
	return func(snap engine.Snapshot) {
		if h.recorder == nil {
			return
		}
		rec, err := snap.Record()
		if err == nil {
			err = h.recorder.Record(ctx, rec)
		}
		if err != nil {
			h.logger.Error("record scan failed", "seq", snap.Seq, "error", err)
		}
	}
}

// execute runs one step and returns a failure message, or "" on success.
func (h *Harness) execute(i int, step Step) string {
	err := h.perform(step)

	if step.Error != "" {
		got := errorCode(err)
		if got != step.Error {
			return fmt.Sprintf("steps[%d] %s: expected error %s, got %s", i, step.Kind(), step.Error, describe(err))
		}
		return ""
	}

	if err != nil {
		return fmt.Sprintf("steps[%d] %s: %v", i, step.Kind(), err)
	}

	if step.Expect != nil {
		failures := EvaluateExpect(h.engine.Snapshot(), *step.Expect)
		if len(failures) > 0 {
			msg := fmt.Sprintf("steps[%d] expect:", i)
			for _, f := range failures {
				msg += "\n  " + f.Error()
			}
			return msg
		}
	}
	return ""
}

// perform applies the step to the engine.
func (h *Harness) perform(step Step) error {
	e := h.engine
	switch step.Kind() {
	case StepMode:
		return e.SetMode(ir.Mode(step.Mode))

	case StepWrite:
		v, err := ir.ValueOf(step.Write.Value)
		if err != nil {
			return err
		}
		return e.WriteTag(step.Write.Tag, v)

	case StepForce:
		var value *ir.Value
		if step.Force.Value != nil {
			v, err := ir.ValueOf(step.Force.Value)
			if err != nil {
				return err
			}
			value = &v
		}
		return e.SetForce(step.Force.Tag, step.Force.Forced, value)

	case StepScan:
		for range step.Scan {
			if _, err := e.Scan(); err != nil {
				return err
			}
		}
		return nil

	case StepUpdate:
		project, err := compiler.LoadProject(h.scenario.resolve(step.Update))
		if err != nil {
			return err
		}
		return e.UpdateProject(project)
	}
	return nil
}

// errorCode extracts the machine-readable code of a runtime or link error.
func errorCode(err error) string {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	var le *compiler.LinkError
	if errors.As(err, &le) {
		return string(le.Code)
	}
	return ""
}

func describe(err error) string {
	if err == nil {
		return "no error"
	}
	if code := errorCode(err); code != "" {
		return code
	}
	return err.Error()
}

package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/plcscan/internal/ir"
)

// TraceSnapshot is the golden form of a scenario trace.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		tags := make(map[string]any, len(event.Tags))
		for id, v := range event.Tags {
			tags[id] = v
		}
		eventMap := map[string]any{
			"seq":   event.Seq,
			"scans": event.Scans,
			"mode":  event.Mode,
			"tags":  tags,
		}
		if len(event.Forced) > 0 {
			forced := make([]any, len(event.Forced))
			for j, id := range event.Forced {
				forced[j] = id
			}
			eventMap["forced"] = forced
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// MarshalTrace renders a result's trace as canonical JSON.
func MarshalTrace(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Trace: result.Trace}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass. Test failure (via
// goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}

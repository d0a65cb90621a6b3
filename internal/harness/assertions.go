package harness

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/plcscan/internal/engine"
	"github.com/roach88/plcscan/internal/ir"
)

// tolerance absorbs float noise in numeric comparisons. Engine outputs
// are rounded to at most four places.
const tolerance = 1e-9

// AssertionError is one expectation that did not hold.
type AssertionError struct {
	Subject  string // "tag start", "element t1.current", "mode"
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Subject, e.Expected, e.Actual)
}

// EvaluateExpect compares the snapshot against exp and returns every
// mismatch, ordered by subject.
func EvaluateExpect(snap engine.Snapshot, exp Expect) []*AssertionError {
	var errs []*AssertionError

	if exp.Mode != "" && snap.Mode != ir.Mode(exp.Mode) {
		errs = append(errs, &AssertionError{Subject: "mode", Expected: exp.Mode, Actual: string(snap.Mode)})
	}
	if exp.Scans != nil && snap.Scans != *exp.Scans {
		errs = append(errs, &AssertionError{
			Subject:  "scans",
			Expected: fmt.Sprint(*exp.Scans),
			Actual:   fmt.Sprint(snap.Scans),
		})
	}

	for _, id := range sortedKeys(exp.Tags) {
		if err := assertTag(snap, id, exp.Tags[id]); err != nil {
			errs = append(errs, err)
		}
	}

	for _, id := range sortedKeys(exp.Forced) {
		tag, ok := snap.Tag(id)
		if !ok {
			errs = append(errs, &AssertionError{Subject: "tag " + id, Expected: "a tag", Actual: "no such tag"})
			continue
		}
		if tag.Forced != exp.Forced[id] {
			errs = append(errs, &AssertionError{
				Subject:  "tag " + id + ".forced",
				Expected: fmt.Sprint(exp.Forced[id]),
				Actual:   fmt.Sprint(tag.Forced),
			})
		}
	}

	for _, id := range sortedKeys(exp.Elements) {
		errs = append(errs, assertElement(snap, id, exp.Elements[id])...)
	}

	return errs
}

// assertTag compares numerically: BOOL values read as 1 or 0, so
// "true" matches a BOOL tag that is on.
func assertTag(snap engine.Snapshot, id string, want any) *AssertionError {
	tag, ok := snap.Tag(id)
	if !ok {
		return &AssertionError{Subject: "tag " + id, Expected: "a tag", Actual: "no such tag"}
	}
	wantVal, err := ir.ValueOf(want)
	if err != nil {
		return &AssertionError{Subject: "tag " + id, Expected: fmt.Sprint(want), Actual: err.Error()}
	}
	if !closeEnough(tag.Value.Float(), wantVal.Float()) {
		return &AssertionError{Subject: "tag " + id, Expected: wantVal.String(), Actual: tag.Value.String()}
	}
	return nil
}

func assertElement(snap engine.Snapshot, id string, want ElementExpect) []*AssertionError {
	got, ok := snap.Element(id)
	if !ok {
		return []*AssertionError{{Subject: "element " + id, Expected: "an element", Actual: "no such element"}}
	}

	var errs []*AssertionError
	if want.IsActive != nil && got.IsActive != *want.IsActive {
		errs = append(errs, &AssertionError{
			Subject:  "element " + id + ".isActive",
			Expected: fmt.Sprint(*want.IsActive),
			Actual:   fmt.Sprint(got.IsActive),
		})
	}
	if want.PowerFlowOut != nil && got.PowerFlowOut != *want.PowerFlowOut {
		errs = append(errs, &AssertionError{
			Subject:  "element " + id + ".powerFlowOut",
			Expected: fmt.Sprint(*want.PowerFlowOut),
			Actual:   fmt.Sprint(got.PowerFlowOut),
		})
	}
	if want.Current != nil && !closeEnough(got.Current, *want.Current) {
		errs = append(errs, &AssertionError{
			Subject:  "element " + id + ".current",
			Expected: fmt.Sprint(*want.Current),
			Actual:   fmt.Sprint(got.Current),
		})
	}
	return errs
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

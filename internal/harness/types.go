package harness

import (
	"github.com/roach88/plcscan/internal/ir"
)

// TraceEvent is one published snapshot as recorded by the store.
type TraceEvent struct {
	Seq    int64               `json:"seq"`
	Scans  int64               `json:"scans"`
	Mode   ir.Mode             `json:"mode"`
	Tags   map[string]ir.Value `json:"tags"`
	Forced []string            `json:"forced,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected.
	Pass bool `json:"pass"`

	// Trace holds every snapshot published during the run, in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func traceFromRecord(rec ir.ScanRecord) TraceEvent {
	ev := TraceEvent{
		Seq:   rec.Seq,
		Scans: rec.Scans,
		Mode:  rec.Mode,
		Tags:  make(map[string]ir.Value, len(rec.Tags)),
	}
	for _, t := range rec.Tags {
		ev.Tags[t.ID] = t.Value
		if t.Forced {
			ev.Forced = append(ev.Forced, t.ID)
		}
	}
	return ev
}

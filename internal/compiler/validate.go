package compiler

import (
	"fmt"

	"github.com/roach88/plcscan/internal/ir"
)

// Warning codes (W200-W299). Warnings never stop a project from running;
// the engine degrades silently on each of them.
const (
	WarnDanglingTagRef    = "W201" // tag reference names no tag
	WarnMissingTag        = "W202" // contact or coil without a primary tag
	WarnWritesInput       = "W203" // write target is a physical input
	WarnSingleBranch      = "W204" // branch group with fewer than two branches
	WarnNonPositivePreset = "W205" // timer preset is zero or negative
	WarnMissingDest       = "W206" // instruction writes nowhere
)

// ValidationError is a non-fatal finding about a linked program.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// destKinds write their result to destTagId, falling back to the primary tag.
var destKinds = map[ir.Kind]bool{
	ir.KindMov: true, ir.KindAdd: true, ir.KindSub: true, ir.KindMul: true, ir.KindDiv: true,
	ir.KindNormX: true, ir.KindScaleX: true, ir.KindSCP: true, ir.KindPID: true,
	ir.KindAnd: true, ir.KindOrGate: true, ir.KindXor: true,
}

// primaryWriters write their primary tag.
var primaryWriters = map[ir.Kind]bool{
	ir.KindCoil: true, ir.KindSet: true, ir.KindReset: true, ir.KindSR: true, ir.KindRS: true,
	ir.KindTON: true, ir.KindTOF: true, ir.KindTONR: true,
	ir.KindCTU: true, ir.KindCTD: true, ir.KindCTUD: true,
}

// Validate reports suspicious but runnable constructs in a linked program.
// Returns all findings in arena order (does not fail-fast).
func Validate(prog *Program) []ValidationError {
	var errs []ValidationError
	tags := prog.Project.Tags

	for _, n := range prog.Nodes {
		if n.Kind == NodeBranch {
			if len(n.Branches) < 2 {
				errs = append(errs, ValidationError{
					Field:   n.ID,
					Message: fmt.Sprintf("branch group has %d branch(es); it behaves like a series connection", len(n.Branches)),
					Code:    WarnSingleBranch,
				})
			}
			continue
		}

		inst := n.Inst
		p := inst.P()

		for _, r := range []struct {
			field, id string
			idx       int
		}{
			{"tagId", inst.TagID, n.Refs.Tag},
			{"sourceTagId", p.SourceTagID, n.Refs.Source},
			{"destTagId", p.DestTagID, n.Refs.Dest},
			{"minTagId", p.MinTagID, n.Refs.Min},
			{"maxTagId", p.MaxTagID, n.Refs.Max},
			{"resetTagId", p.ResetTagID, n.Refs.Reset},
		} {
			if r.id != "" && r.idx == NoRef {
				errs = append(errs, ValidationError{
					Field:   n.ID + "." + r.field,
					Message: fmt.Sprintf("tag %q does not exist; reads as 0", r.id),
					Code:    WarnDanglingTagRef,
				})
			}
		}

		if (n.Op.IsContact() || primaryWriters[n.Op]) && inst.TagID == "" {
			errs = append(errs, ValidationError{
				Field:   n.ID + ".tagId",
				Message: fmt.Sprintf("%s has no tag", n.Op),
				Code:    WarnMissingTag,
			})
		}

		target := NoRef
		switch {
		case destKinds[n.Op]:
			target = n.Refs.Dest
			if target == NoRef {
				target = n.Refs.Tag
			}
			if target == NoRef && p.DestTagID == "" && inst.TagID == "" {
				errs = append(errs, ValidationError{
					Field:   n.ID + ".destTagId",
					Message: fmt.Sprintf("%s has no destination; result is discarded", n.Op),
					Code:    WarnMissingDest,
				})
			}
		case primaryWriters[n.Op]:
			target = n.Refs.Tag
		}
		if target != NoRef && tags[target].IsInput() {
			errs = append(errs, ValidationError{
				Field:   n.ID,
				Message: fmt.Sprintf("writes input tag %q (%s); writes are ignored", tags[target].ID, tags[target].Address),
				Code:    WarnWritesInput,
			})
		}

		if n.Op.IsTimer() && p.Preset <= 0 {
			errs = append(errs, ValidationError{
				Field:   n.ID + ".params.preset",
				Message: "timer preset is not positive; zero falls back to 5 and negative presets expire on the first scan",
				Code:    WarnNonPositivePreset,
			})
		}
	}

	return errs
}

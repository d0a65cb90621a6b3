package engine

import (
	"slices"

	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/ir"
)

// Snapshot is the engine state after a completed scan, a STOP reset or a
// PAUSE. It owns its tag and element slices; the engine never touches
// them after publishing. Treat a Snapshot as read-only: the same value
// may be handed to several observers.
type Snapshot struct {
	// Seq orders publications. It increases by one per published snapshot
	// and is never reset.
	Seq int64 `json:"seq"`

	// Scans counts completed scans since the last STOP.
	Scans int64 `json:"scans"`

	Mode ir.Mode `json:"mode"`

	// Tags is the tag table in project order.
	Tags []ir.Tag `json:"tags"`

	// Elements is the observation state in program arena order.
	Elements []ElementState `json:"elements"`

	prog     *compiler.Program
	carriers []bool
}

// Program returns the linked program the snapshot was taken from.
func (s Snapshot) Program() *compiler.Program {
	return s.prog
}

// Tag returns the tag with the given id.
func (s Snapshot) Tag(id string) (ir.Tag, bool) {
	if s.prog == nil {
		return ir.Tag{}, false
	}
	i, ok := s.prog.TagIndex(id)
	if !ok {
		return ir.Tag{}, false
	}
	return s.Tags[i], true
}

// Value returns the value of the tag with the given id, or numeric zero
// when there is no such tag.
func (s Snapshot) Value(id string) ir.Value {
	t, ok := s.Tag(id)
	if !ok {
		return ir.Num(0)
	}
	return t.Value
}

// Element returns the observation state of the element with the given id.
func (s Snapshot) Element(id string) (ElementState, bool) {
	if s.prog == nil {
		return ElementState{}, false
	}
	i, ok := s.prog.NodeIndex(id)
	if !ok {
		return ElementState{}, false
	}
	return s.Elements[i], true
}

// Digest returns a digest of tag values and force flags.
func (s Snapshot) Digest() (string, error) {
	return ir.TagsDigest(s.Tags)
}

// Project materializes the full project as the editor sees it: tag
// values, isActive/powerFlowOut on every element and "current" on
// timers and counters.
func (s Snapshot) Project() ir.Project {
	if s.prog == nil {
		return ir.Project{}
	}
	p := s.prog.Project.Clone()
	p.Tags = slices.Clone(s.Tags)

	p.WalkElements(func(el ir.Element) {
		idx, ok := s.prog.NodeIndex(el.ID())
		if !ok {
			return
		}
		st := s.Elements[idx]
		if el.Branch != nil {
			el.Branch.IsActive = st.IsActive
			el.Branch.PowerFlowOut = st.PowerFlowOut
			return
		}
		inst := el.Instruction
		inst.IsActive = st.IsActive
		inst.PowerFlowOut = st.PowerFlowOut
		if s.carriers[idx] {
			if inst.Params == nil {
				inst.Params = &ir.Params{}
			}
			c := st.Current
			inst.Params.Current = &c
		}
	})
	return p
}

// Record converts the snapshot into its persisted form. RunID is left
// for the recorder to fill in.
func (s Snapshot) Record() (ir.ScanRecord, error) {
	digest, err := s.Digest()
	if err != nil {
		return ir.ScanRecord{}, err
	}
	return ir.ScanRecord{
		Seq:    s.Seq,
		Scans:  s.Scans,
		Mode:   s.Mode,
		Digest: digest,
		Tags:   s.Tags,
	}, nil
}

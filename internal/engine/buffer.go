package engine

import (
	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/ir"
)

// ElementState is the observation state of one element, aligned with the
// program arena (compiler.Program.Nodes).
type ElementState struct {
	IsActive     bool    `json:"isActive"`
	PowerFlowOut bool    `json:"powerFlowOut"`
	Current      float64 `json:"current"`
}

// frame is one side of the double buffer.
type frame struct {
	tags  []ir.Tag
	elems []ElementState
}

// doubleBuffer holds the committed frame observers see and the draft a
// scan mutates. Both frames always have the same shape.
type doubleBuffer struct {
	committed frame
	draft     frame
}

func newDoubleBuffer(tags []ir.Tag, elems []ElementState) *doubleBuffer {
	return &doubleBuffer{
		committed: frame{tags: tags, elems: elems},
		draft: frame{
			tags:  make([]ir.Tag, len(tags)),
			elems: make([]ElementState, len(elems)),
		},
	}
}

// begin overwrites the draft with the committed frame and returns it.
func (b *doubleBuffer) begin() *frame {
	copy(b.draft.tags, b.committed.tags)
	copy(b.draft.elems, b.committed.elems)
	return &b.draft
}

// commit makes the draft the committed frame.
func (b *doubleBuffer) commit() {
	b.committed, b.draft = b.draft, b.committed
}

// initialElements reads the observation fields stored in the project so a
// freshly loaded engine reports what the editor last showed.
func initialElements(prog *compiler.Program) []ElementState {
	elems := make([]ElementState, len(prog.Nodes))
	prog.Project.WalkElements(func(el ir.Element) {
		idx, ok := prog.NodeIndex(el.ID())
		if !ok {
			return
		}
		if el.Branch != nil {
			elems[idx] = ElementState{IsActive: el.Branch.IsActive, PowerFlowOut: el.Branch.PowerFlowOut}
			return
		}
		st := ElementState{IsActive: el.Instruction.IsActive, PowerFlowOut: el.Instruction.PowerFlowOut}
		if c := el.Instruction.P().Current; c != nil {
			st.Current = *c
		}
		elems[idx] = st
	})
	return elems
}

// currentCarriers reports, per node, whether the instruction exposes a
// "current" parameter: timers and counters always do, other kinds only
// when the project set one.
func currentCarriers(prog *compiler.Program) []bool {
	out := make([]bool, len(prog.Nodes))
	for i, n := range prog.Nodes {
		if n.Kind != compiler.NodeInstruction {
			continue
		}
		out[i] = n.Op.IsTimer() || n.Op.IsCounter() || n.Inst.P().Current != nil
	}
	return out
}

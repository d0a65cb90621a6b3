package engine

import (
	"time"

	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/ir"
)

// scanner evaluates a program once against a draft frame.
type scanner struct {
	prog   *compiler.Program
	f      *frame
	mem    *memory
	period time.Duration
}

// run evaluates every rung of every network in declaration order. Each
// rung starts from the power rail.
func (s *scanner) run() {
	for _, n := range s.prog.Networks {
		for _, r := range n.Rungs {
			s.evalList(r.Elements, true)
		}
	}
}

// evalList threads power through a series of elements and returns the
// power leaving the last one.
func (s *scanner) evalList(list []int, power bool) bool {
	for _, idx := range list {
		power = s.evalNode(idx, power)
	}
	return power
}

func (s *scanner) evalNode(idx int, powerIn bool) bool {
	n := &s.prog.Nodes[idx]

	var out bool
	if n.Kind == compiler.NodeBranch {
		// No short-circuit: every branch is evaluated.
		for _, br := range n.Branches {
			if s.evalList(br, powerIn) {
				out = true
			}
		}
	} else {
		out = s.exec(idx, n, powerIn)
	}

	st := &s.f.elems[idx]
	st.IsActive = powerIn
	st.PowerFlowOut = out
	return out
}

// bit reads a tag as a boolean. Unresolved references read false.
func (s *scanner) bit(ref int) bool {
	if ref == compiler.NoRef {
		return false
	}
	return s.f.tags[ref].Value.Truthy()
}

// num reads a numeric operand: the referenced tag when it resolves,
// otherwise the configured constant.
func (s *scanner) num(ref int, fallback float64) float64 {
	if ref == compiler.NoRef {
		return fallback
	}
	return s.f.tags[ref].Value.Float()
}

// write stores v into the referenced tag, converted to the tag's type.
// Forced tags, physical inputs and unresolved references are left alone.
func (s *scanner) write(ref int, v ir.Value) {
	if ref == compiler.NoRef {
		return
	}
	t := &s.f.tags[ref]
	if !t.Writable() {
		return
	}
	t.Value = v.As(t.DataType)
}

// dest returns the tag an instruction writes its result to: destTagId
// when configured, otherwise the primary tag.
func dest(n *compiler.Node) int {
	if n.Inst.P().DestTagID != "" {
		return n.Refs.Dest
	}
	return n.Refs.Tag
}

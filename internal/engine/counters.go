package engine

import (
	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/ir"
)

// counter evaluates CTU, CTD and CTUD. Counting happens on rising edges:
// rung power for up (down for CTD), the source tag for CTUD's down input.
// A true reset tag zeroes the count instead. Q = count >= preset is
// written to the primary tag and returned as the output power.
func (s *scanner) counter(idx int, n *compiler.Node, powerIn bool) bool {
	p := n.Inst.P()
	down := n.Op == ir.KindCTUD && s.bit(n.Refs.Source)
	st := s.mem.counter(n.ID, powerIn, down)

	if s.bit(n.Refs.Reset) {
		st.count = 0
	} else {
		if powerIn && !st.lastUp {
			if n.Op == ir.KindCTD {
				st.count--
			} else {
				st.count++
			}
		}
		if down && !st.lastDown {
			st.count--
		}
	}
	st.lastUp = powerIn
	st.lastDown = down

	q := st.count >= p.Preset
	s.f.elems[idx].Current = st.count
	s.write(n.Refs.Tag, ir.Bool(q))
	return q
}

package engine

import (
	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/ir"
)

// exec evaluates one instruction and returns its output power.
func (s *scanner) exec(idx int, n *compiler.Node, powerIn bool) bool {
	p := n.Inst.P()
	r := n.Refs

	switch n.Op {
	case ir.KindNO:
		return powerIn && contact(n.Inst, s.bit(r.Tag))
	case ir.KindNC:
		return powerIn && contact(n.Inst, !s.bit(r.Tag))

	case ir.KindCoil:
		s.write(r.Tag, ir.Bool(powerIn))
		return powerIn
	case ir.KindSet:
		if powerIn {
			s.write(r.Tag, ir.Bool(true))
		}
		return powerIn
	case ir.KindReset:
		if powerIn {
			s.write(r.Tag, ir.Bool(false))
		}
		return powerIn
	case ir.KindSR, ir.KindRS:
		return s.latch(n, powerIn)

	case ir.KindAnd, ir.KindOrGate, ir.KindXor:
		return s.gate(n)

	case ir.KindEQ, ir.KindNE, ir.KindGT, ir.KindGE, ir.KindLT, ir.KindLE:
		return powerIn && compare(n.Op, s.num(r.Source, p.Preset), s.num(r.Min, p.Preset2))

	case ir.KindMov:
		if powerIn {
			v := ir.Num(p.Preset)
			if r.Source != compiler.NoRef {
				v = s.f.tags[r.Source].Value
			}
			s.write(dest(n), v)
		}
		return powerIn

	case ir.KindAdd, ir.KindSub, ir.KindMul, ir.KindDiv:
		if powerIn {
			s.write(dest(n), ir.Num(arith(n.Op, s.num(r.Source, p.Preset), s.num(r.Min, p.Preset2))))
		}
		return powerIn

	case ir.KindNormX, ir.KindScaleX, ir.KindSCP:
		if powerIn {
			s.write(dest(n), ir.Num(s.scale(n)))
		}
		return powerIn

	case ir.KindPID:
		if powerIn {
			s.pid(n)
		}
		return powerIn

	case ir.KindTON, ir.KindTOF, ir.KindTONR:
		return s.timer(idx, n, powerIn)

	case ir.KindCTU, ir.KindCTD, ir.KindCTUD:
		return s.counter(idx, n, powerIn)
	}

	return powerIn
}

// contact applies a per-instance force override to a contact result.
func contact(inst *ir.Instruction, result bool) bool {
	switch inst.Forced {
	case ir.ForceOn:
		return true
	case ir.ForceOff:
		return false
	default:
		return result
	}
}

// latch evaluates SR (set dominant) and RS (reset dominant) flip-flops.
// S is the rung power, R the reset tag; the primary tag holds the state.
func (s *scanner) latch(n *compiler.Node, set bool) bool {
	reset := s.bit(n.Refs.Reset)
	q := s.bit(n.Refs.Tag)

	switch {
	case n.Op == ir.KindSR && set:
		q = true
	case reset:
		q = false
	case set:
		q = true
	}

	s.write(n.Refs.Tag, ir.Bool(q))
	return q
}

// gate evaluates AND/OR_GATE/XOR over two boolean operands. The result
// does not depend on rung power.
func (s *scanner) gate(n *compiler.Node) bool {
	p := n.Inst.P()
	a := s.num(n.Refs.Source, p.Preset) != 0
	b := s.num(n.Refs.Min, p.Preset2) != 0

	var out bool
	switch n.Op {
	case ir.KindAnd:
		out = a && b
	case ir.KindOrGate:
		out = a || b
	case ir.KindXor:
		out = a != b
	}

	s.write(dest(n), ir.Bool(out))
	return out
}

func compare(op ir.Kind, a, b float64) bool {
	switch op {
	case ir.KindEQ:
		return a == b
	case ir.KindNE:
		return a != b
	case ir.KindGT:
		return a > b
	case ir.KindGE:
		return a >= b
	case ir.KindLT:
		return a < b
	case ir.KindLE:
		return a <= b
	default:
		return false
	}
}

// arith applies a math instruction. Division by zero yields 0.
func arith(op ir.Kind, a, b float64) float64 {
	switch op {
	case ir.KindAdd:
		return a + b
	case ir.KindSub:
		return a - b
	case ir.KindMul:
		return a * b
	case ir.KindDiv:
		if b == 0 {
			return 0
		}
		return a / b
	default:
		return 0
	}
}

// scale evaluates NORM_X, SCALE_X and SCP.
//
//	NORM_X:  (v-min)/(max-min) clamped to [0,1], 4 decimals; 0 when max=min
//	SCALE_X: v*(max-min)+min, 2 decimals
//	SCP:     v mapped from [inMin,inMax] to [outMin,outMax], 2 decimals;
//	         outMin when the input span is empty
func (s *scanner) scale(n *compiler.Node) float64 {
	p := n.Inst.P()
	v := s.num(n.Refs.Source, p.Preset)

	switch n.Op {
	case ir.KindNormX:
		lo, hi := s.num(n.Refs.Min, p.Preset2), s.num(n.Refs.Max, p.Preset3)
		if hi == lo {
			return 0
		}
		return ir.Round(min(max((v-lo)/(hi-lo), 0), 1), 4)

	case ir.KindScaleX:
		lo, hi := s.num(n.Refs.Min, p.Preset2), s.num(n.Refs.Max, p.Preset3)
		return ir.Round(v*(hi-lo)+lo, 2)

	default:
		outMin, outMax := outputRange(p)
		span := p.InMax - p.InMin
		if span == 0 {
			return outMin
		}
		return ir.Round(outMin+(v-p.InMin)*(outMax-outMin)/span, 2)
	}
}

// outputRange returns outMin/outMax, defaulting to [0, 100].
func outputRange(p ir.Params) (float64, float64) {
	lo, hi := 0.0, 100.0
	if p.OutMin != nil {
		lo = *p.OutMin
	}
	if p.OutMax != nil {
		hi = *p.OutMax
	}
	return lo, hi
}

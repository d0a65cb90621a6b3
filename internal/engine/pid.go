package engine

import (
	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/ir"
)

// pid runs one step of a non-interacting PID controller:
//
//	e = setpoint - pv
//	I += e*dt
//	D = (e - lastError)/dt
//	out = kp*e + ki*I + kd*D, clamped to [outMin, outMax]
//
// The setpoint is the source tag (or the setpoint constant), the process
// value the min tag. The integral itself is not clamped.
func (s *scanner) pid(n *compiler.Node) {
	p := n.Inst.P()
	st := s.mem.pid(n.ID)

	sp := s.num(n.Refs.Source, p.Setpoint)
	pv := s.num(n.Refs.Min, 0)
	dt := s.period.Seconds()

	e := sp - pv
	st.integral += e * dt
	var deriv float64
	if dt > 0 {
		deriv = (e - st.lastError) / dt
	}
	st.lastError = e

	kp := 1.0
	if p.Kp != nil {
		kp = *p.Kp
	}
	out := kp*e + p.Ki*st.integral + p.Kd*deriv

	lo, hi := outputRange(p)
	out = min(max(out, lo), hi)

	s.write(dest(n), ir.Num(ir.Round(out, 2)))
}

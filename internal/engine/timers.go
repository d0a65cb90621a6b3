package engine

import (
	"time"

	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/ir"
)

// defaultTimerPreset applies when a timer has no preset configured.
const defaultTimerPreset = 5

// timerPreset returns the preset in milliseconds.
func timerPreset(p ir.Params) float64 {
	preset := p.Preset
	if preset == 0 {
		preset = defaultTimerPreset
	}
	if p.TimeUnit == ir.TimeUnitSeconds {
		preset *= 1000
	}
	return preset
}

// timer advances a TON, TOF or TONR by one scan period, writes Q to the
// primary tag and returns Q as the output power.
func (s *scanner) timer(idx int, n *compiler.Node, powerIn bool) bool {
	st := s.mem.timer(n.ID)
	preset := timerPreset(n.Inst.P())
	step := float64(s.period) / float64(time.Millisecond)

	var q bool
	switch n.Op {
	case ir.KindTON:
		if powerIn {
			st.elapsed = min(st.elapsed+step, preset)
			q = st.elapsed >= preset
		} else {
			st.elapsed = 0
		}

	case ir.KindTOF:
		if powerIn {
			st.elapsed = 0
			q = true
		} else {
			st.elapsed = min(st.elapsed+step, preset)
			q = st.elapsed < preset
		}

	case ir.KindTONR:
		if s.bit(n.Refs.Reset) {
			st.elapsed = 0
		} else if powerIn {
			st.elapsed = min(st.elapsed+step, preset)
		}
		q = st.elapsed >= preset
	}

	s.f.elems[idx].Current = st.elapsed
	s.write(n.Refs.Tag, ir.Bool(q))
	return q
}

package engine

import (
	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/ir"
)

type timerState struct {
	elapsed float64 // milliseconds
}

type counterState struct {
	count    float64
	lastUp   bool // previous scan's count-up input
	lastDown bool // previous scan's count-down input (CTUD)
}

type pidState struct {
	integral  float64
	lastError float64
}

// memory is the per-instruction state carried across scans, keyed by
// instruction id. Two instructions sharing a tag never share memory.
type memory struct {
	timers   map[string]*timerState
	counters map[string]*counterState
	pids     map[string]*pidState
}

func newMemory() memory {
	return memory{
		timers:   make(map[string]*timerState),
		counters: make(map[string]*counterState),
		pids:     make(map[string]*pidState),
	}
}

// clear discards all instance memory (STOP).
func (m *memory) clear() {
	clear(m.timers)
	clear(m.counters)
	clear(m.pids)
}

// rearmFromStop prepares memory for RUN entered from STOP: edge history
// is re-armed and controller memory is discarded. Accumulated timer and
// counter values are kept. After a full reset there are no counters left
// to re-arm; they are recreated, seeded from their inputs, on first use.
func (m *memory) rearmFromStop() {
	m.rearmEdges()
	clear(m.pids)
}

// rearmFromPause prepares memory for RUN resumed from PAUSE: only edge
// history is re-armed, so an input held through the pause counts once.
func (m *memory) rearmFromPause() {
	m.rearmEdges()
}

func (m *memory) rearmEdges() {
	for _, c := range m.counters {
		c.lastUp = false
		c.lastDown = false
	}
}

// prune drops memory for instructions that no longer exist in prog or
// whose kind no longer uses that kind of memory.
func (m *memory) prune(prog *compiler.Program) {
	keep := func(id string, ok func(n compiler.Node) bool) bool {
		idx, found := prog.NodeIndex(id)
		return found && ok(prog.Nodes[idx])
	}
	for id := range m.timers {
		if !keep(id, func(n compiler.Node) bool { return n.Op.IsTimer() }) {
			delete(m.timers, id)
		}
	}
	for id := range m.counters {
		if !keep(id, func(n compiler.Node) bool { return n.Op.IsCounter() }) {
			delete(m.counters, id)
		}
	}
	for id := range m.pids {
		if !keep(id, func(n compiler.Node) bool { return n.Op == ir.KindPID }) {
			delete(m.pids, id)
		}
	}
}

func (m *memory) timer(id string) *timerState {
	st, ok := m.timers[id]
	if !ok {
		st = &timerState{}
		m.timers[id] = st
	}
	return st
}

// counter returns the counter memory for id. A new instance takes the
// current inputs as its edge history, so an input already true on the
// first evaluation is not a rising edge.
func (m *memory) counter(id string, up, down bool) *counterState {
	st, ok := m.counters[id]
	if !ok {
		st = &counterState{lastUp: up, lastDown: down}
		m.counters[id] = st
	}
	return st
}

func (m *memory) pid(id string) *pidState {
	st, ok := m.pids[id]
	if !ok {
		st = &pidState{}
		m.pids[id] = st
	}
	return st
}

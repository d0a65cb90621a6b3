package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/ir"
)

// DefaultScanPeriod is the scan period used unless WithScanPeriod is given.
const DefaultScanPeriod = 50 * time.Millisecond

// UpdateFunc observes published snapshots.
//
// It is called once per completed scan and once for every STOP and PAUSE
// request, on the goroutine that caused the publication, with no engine
// lock held. Calls are serialized and delivered in Seq order. The
// function may call Mode, Snapshot, SetForce, WriteTag and UpdateProject;
// it must not call SetMode or Scan.
type UpdateFunc func(Snapshot)

// Engine is the scan-cycle emulator.
//
// Thread-safety model:
//   - All methods are safe for concurrent use.
//   - Scans never overlap; control operations wait for a running scan.
//   - Run must be called from at most one goroutine.
type Engine struct {
	mu       sync.Mutex
	prog     *compiler.Program
	carriers []bool
	buf      *doubleBuffer
	mem      memory
	mode     ir.Mode
	scans    int64

	period    time.Duration
	clock     *Clock
	newTicker TickerFunc
	logger    *slog.Logger
	wake      chan struct{}

	pubMu         sync.Mutex
	onUpdate      UpdateFunc
	lastDelivered int64
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithScanPeriod sets the scan period. It is both the Run loop interval
// and the time step timers and the PID controller integrate over.
// Non-positive values are ignored.
//
// Default: 50ms (DefaultScanPeriod)
func WithScanPeriod(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.period = d
		}
	}
}

// WithUpdateFunc registers the update callback.
func WithUpdateFunc(fn UpdateFunc) EngineOption {
	return func(e *Engine) {
		e.onUpdate = fn
	}
}

// WithLogger sets the logger for mode transitions and project changes.
// The engine is silent by default.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTicker replaces the ticker that paces Run.
func WithTicker(fn TickerFunc) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.newTicker = fn
		}
	}
}

// New links project and creates an engine in STOP mode.
//
// The engine works on its own copy of the project. It returns an error
// wrapping *compiler.LinkError when the project is structurally invalid.
func New(project ir.Project, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		mem:       newMemory(),
		mode:      ir.ModeStop,
		period:    DefaultScanPeriod,
		clock:     NewClock(),
		newTicker: NewTicker,
		logger:    slog.New(slog.DiscardHandler),
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	prog, err := compiler.Link(project)
	if err != nil {
		return nil, &RuntimeError{Code: ErrCodeInvalidProject, Message: "project rejected", Err: err}
	}
	e.install(prog, false)
	return e, nil
}

// Period returns the scan period.
func (e *Engine) Period() time.Duration {
	return e.period
}

// Mode returns the current mode.
func (e *Engine) Mode() ir.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Program returns the linked program currently evaluated.
func (e *Engine) Program() *compiler.Program {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prog
}

// SetMode requests a mode transition.
//
//   - RUN: scanning starts (see Run). From STOP, counter edge history is
//     re-armed and PID memory discarded; counters recreated after the
//     reset take their first inputs as history, so a held input does not
//     count. From PAUSE, only edge history is re-armed and a held input
//     counts once. RUN while running is a no-op.
//   - STOP: scanning halts and the full reset runs: tags are zeroed
//     regardless of force, instance memory is discarded and element state
//     cleared. Always re-run, even when already stopped. Publishes.
//   - PAUSE: scanning halts with all state preserved. Publishes.
//
// ONLINE is reserved and rejected with ErrCodeInvalidMode, as is any
// unknown mode; the current mode is left unchanged. DESIGN.md records
// this decision.
func (e *Engine) SetMode(mode ir.Mode) error {
	switch mode {
	case ir.ModeRun, ir.ModeStop, ir.ModePause:
	default:
		return &RuntimeError{Code: ErrCodeInvalidMode, Message: fmt.Sprintf("mode %q is not supported", mode)}
	}

	e.mu.Lock()
	prev := e.mode
	e.mode = mode

	switch mode {
	case ir.ModeRun:
		switch prev {
		case ir.ModeStop:
			e.mem.rearmFromStop()
		case ir.ModePause:
			e.mem.rearmFromPause()
		}
		e.mu.Unlock()
		if prev != ir.ModeRun {
			e.logger.Info("mode changed", "from", prev, "to", mode)
			e.signalRun()
		}
		return nil

	case ir.ModeStop:
		e.fullReset()
	}

	snap := e.snapshotLocked(true)
	e.mu.Unlock()
	if prev != mode {
		e.logger.Info("mode changed", "from", prev, "to", mode)
	}
	e.publish(snap)
	return nil
}

// fullReset zeroes every tag (ignoring force), discards instance memory
// and clears element state. Caller must hold e.mu.
func (e *Engine) fullReset() {
	tags := e.buf.committed.tags
	for i := range tags {
		tags[i].Value = ir.Zero(tags[i].DataType)
	}
	clear(e.buf.committed.elems)
	e.mem.clear()
	e.scans = 0
}

// Scan runs exactly one scan and publishes the result. It returns an
// ErrCodeNotRunning error unless the engine is in RUN.
func (e *Engine) Scan() (Snapshot, error) {
	e.mu.Lock()
	if e.mode != ir.ModeRun {
		mode := e.mode
		e.mu.Unlock()
		return Snapshot{}, &RuntimeError{Code: ErrCodeNotRunning, Message: fmt.Sprintf("engine is in %s", mode)}
	}

	s := scanner{prog: e.prog, f: e.buf.begin(), mem: &e.mem, period: e.period}
	s.run()
	e.buf.commit()
	e.scans++

	snap := e.snapshotLocked(true)
	e.mu.Unlock()

	e.logger.Debug("scan complete", "seq", snap.Seq, "scans", snap.Scans)
	e.publish(snap)
	return snap, nil
}

// Run scans every period while the engine is in RUN, until ctx is done.
// Entering RUN restarts the period so the first scan follows one full
// period after the request.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("scan loop starting", "period", e.period)

	ticker := e.newTicker(e.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("scan loop stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-e.wake:
			ticker.Reset(e.period)
		case <-ticker.C():
			if _, err := e.Scan(); err != nil && !IsNotRunning(err) {
				return err
			}
		}
	}
}

func (e *Engine) signalRun() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Snapshot returns the committed state without publishing it. Seq is the
// sequence number of the latest publication.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(false)
}

// snapshotLocked copies the committed frame. Caller must hold e.mu.
func (e *Engine) snapshotLocked(publish bool) Snapshot {
	seq := e.clock.Current()
	if publish {
		seq = e.clock.Next()
	}
	return Snapshot{
		Seq:      seq,
		Scans:    e.scans,
		Mode:     e.mode,
		Tags:     slices.Clone(e.buf.committed.tags),
		Elements: slices.Clone(e.buf.committed.elems),
		prog:     e.prog,
		carriers: e.carriers,
	}
}

// publish delivers snap to the update callback. A snapshot overtaken by a
// newer publication is dropped.
func (e *Engine) publish(snap Snapshot) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	if snap.Seq <= e.lastDelivered {
		return
	}
	e.lastDelivered = snap.Seq
	if e.onUpdate != nil {
		e.onUpdate(snap)
	}
}

// SetForce sets a tag's force flag and, when value is non-nil, its value.
// The change is visible to the next scan.
func (e *Engine) SetForce(tagID string, forced bool, value *ir.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tagLocked(tagID)
	if err != nil {
		return err
	}
	t.Forced = forced
	if value != nil {
		t.Value = value.As(t.DataType)
	}
	e.logger.Debug("tag force changed", "tag", tagID, "forced", forced)
	return nil
}

// WriteTag sets a tag's value from outside the program, the way a field
// device drives an input. Inputs are writable here; forced tags are not.
func (e *Engine) WriteTag(tagID string, value ir.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tagLocked(tagID)
	if err != nil {
		return err
	}
	if t.Forced {
		return &RuntimeError{Code: ErrCodeTagForced, Message: "tag is forced", TagID: tagID}
	}
	t.Value = value.As(t.DataType)
	return nil
}

func (e *Engine) tagLocked(tagID string) (*ir.Tag, error) {
	i, ok := e.prog.TagIndex(tagID)
	if !ok {
		return nil, &RuntimeError{Code: ErrCodeUnknownTag, Message: "no such tag", TagID: tagID}
	}
	return &e.buf.committed.tags[i], nil
}

// UpdateProject replaces the evaluated project between scans.
//
// A project that fails to link is rejected and the previous program keeps
// running. Otherwise instance memory survives for every instruction id
// still present with a compatible kind.
//
// While RUN or PAUSE the engine's live values win: surviving tags keep
// their current value unless the new project forces them, and surviving
// elements keep their observation state. In STOP the new project's values
// are adopted as they are. Drivers changing a tag value while running use
// WriteTag instead.
func (e *Engine) UpdateProject(project ir.Project) error {
	prog, err := compiler.Link(project)
	if err != nil {
		e.logger.Warn("project rejected", "error", err)
		return &RuntimeError{Code: ErrCodeInvalidProject, Message: "project rejected", Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.install(prog, e.mode != ir.ModeStop)
	e.logger.Info("project replaced", "name", project.Name, "elements", len(prog.Nodes), "tags", len(prog.Project.Tags))
	return nil
}

// install makes prog the evaluated program. With keepLive, values and
// element state of surviving ids are carried over from the current
// buffers. Caller must hold e.mu (or own e exclusively).
func (e *Engine) install(prog *compiler.Program, keepLive bool) {
	tags := slices.Clone(prog.Project.Tags)
	elems := initialElements(prog)

	if keepLive && e.prog != nil {
		old := e.buf.committed
		for i := range tags {
			if tags[i].Forced {
				continue
			}
			if j, ok := e.prog.TagIndex(tags[i].ID); ok {
				tags[i].Value = old.tags[j].Value.As(tags[i].DataType)
			}
		}
		for i, n := range prog.Nodes {
			if j, ok := e.prog.NodeIndex(n.ID); ok {
				elems[i] = old.elems[j]
			}
		}
	}

	e.prog = prog
	e.carriers = currentCarriers(prog)
	e.buf = newDoubleBuffer(tags, elems)
	e.mem.prune(prog)
}

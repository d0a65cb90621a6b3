// Package engine implements the ladder scan-cycle emulator.
//
// The engine owns a linked program (see package compiler), the live tag
// table and per-instruction memory (timers, counters, PID). While in RUN
// it evaluates every rung of every network once per scan period and
// reports the resulting state to an update callback.
//
// ARCHITECTURE:
//
// Double buffer:
// Tag values and element observation state live in two frames. A scan
// copies the committed frame into the draft, evaluates the whole program
// against the draft and then swaps the frames. Instructions later in a
// scan see writes made earlier in the same scan; observers only ever see
// committed frames.
//
// Single scan at a time:
// Scans, mode transitions, force/tag writes and project replacement are
// serialized by one mutex. A scan is never interrupted; STOP and PAUSE
// only prevent the next one. Run drives periodic scans from a ticker;
// ticks that arrive while a scan is still running are dropped.
//
// Per-instruction memory:
// Timer elapsed time, counter counts and PID integrator state are keyed
// by instruction id. They survive UpdateProject for every id that is
// still present with a compatible kind, and are discarded on STOP.
//
// Silent degradation:
// A missing tag reads as 0/false and is never written. Division by zero
// yields 0. The only rejected input is a project that fails to link.
package engine

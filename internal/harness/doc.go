// Package harness runs scenario files against the scan engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: ton_basic
//	description: TON reaches preset after two scans
//	project: ../projects/ton.yaml    # relative to the scenario file
//	period: 50ms
//	steps:
//	  - mode: RUN
//	  - write: {tag: start, value: true}
//	  - force: {tag: out, forced: true, value: false}
//	  - scan: 2
//	  - expect:
//	      tags: {done: true}
//	      elements: {t1: {current: 100, powerFlowOut: true}}
//
// Instead of project, a scenario may carry the project document under
// inline. Each step does exactly one thing:
//
//   - mode: request a mode transition (RUN, STOP, PAUSE)
//   - write: set a tag the way a field device would
//   - force: set or clear a tag's force flag, optionally with a value
//   - scan: run N scans
//   - update: replace the project with another file
//   - expect: check tags, element state, mode and scan count
//
// A step may add error: CODE to assert that it fails with that runtime
// error code (for example NOT_RUNNING or INVALID_PROJECT).
//
// # Deterministic Execution
//
// Scans are stepped explicitly, never driven by a wall clock, and the
// engine's publication sequence starts at 1 for every scenario. Every
// published snapshot is recorded into an in-memory store under a fixed
// run id, and the trace is read back from that store. The same scenario
// therefore always yields a byte-identical trace, which golden files pin.
package harness

// Package store provides SQLite-backed recording of engine runs.
//
// A run is one engine session over one project. Every snapshot the engine
// publishes during the run becomes a scan row plus one tag_values row per
// tag, so the value history of any tag can be read back in order.
//
// # Ordering
//
// All ordering uses the snapshot seq (the engine's logical clock), never
// timestamps. Queries order by seq ASC with a stable tiebreaker, so a
// recorded run reads back identically every time.
//
// # Idempotency
//
// Writes use ON CONFLICT DO NOTHING: recording the same run or the same
// (run, seq) twice is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

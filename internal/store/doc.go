// Package store provides a SQLite-backed channel store for morphc.
//
// A Store implements compiler.ChannelStore so imports are incremental across
// runs: every session recovers the drivers the previous one attached.
//
// Tables:
//   - channels: scalar channels with value and limits
//   - joints: the joint arena (id, name, parent) and undriven local transforms
//   - drivers: one compiled driver per target, as canonical JSON plus hash
//   - sessions: append-only log of import reports
//   - broken_cycles: joint pairs whose dependency cycle was already broken
//
// # Logical time
//
// Every write is stamped with seq from a logical clock, never wall time, so
// two identical imports produce identical databases.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

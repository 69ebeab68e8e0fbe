// Package store provides SQLite-backed durable storage for resolved
// operation history and document snapshots.
//
// The store holds two tables:
//   - operation_results: every flushed result, keyed by document and content ID
//   - snapshots: materialized documents at a given history sequence number
//
// # Ordering
//
// Results are ordered by seq, the logical sequence number the session assigns
// at flush time, never by producer timestamps. Every read uses
// ORDER BY seq ASC, id ASC COLLATE BINARY so replays are identical.
//
// # Idempotency
//
// Result IDs come from ir.ResultID (RFC 8785 canonical JSON, SHA-256 with
// domain separation). Writing the same result twice is a silent no-op.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store

// Package session hosts one collaborative document.
//
// A Session owns the operation queue, the materialized document, per-user
// undo stacks and presence, and optionally a store and metrics recorder.
// Every exported method takes the session mutex, which makes the session
// the single writer the queue requires. Connections, RPC handlers or
// tests may call it from any goroutine.
//
// Local edits go through Edit, which captures the target's prior state
// against the optimistic view (the snapshot with pending operations
// applied) and derives the inverse. Remote results that already carry an
// inverse go through Submit. Nothing reaches the document until Flush.
package session

// Package harness runs collaborative editing scenarios against a real
// session and checks the outcome.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: move_delete_conflict
//	description: "Concurrent move and delete of the same element"
//	tolerance: 100            # optional, queue default otherwise
//	document:
//	  - id: A
//	  - id: B
//	    props: { color: red }
//	steps:
//	  - user: u1
//	    at: 10
//	    op: { kind: move, element_id: B, position: 0 }
//	  - user: u2
//	    at: 40
//	    op: { kind: delete, element_id: B, position: 1 }
//	    flush: true             # optional flush point after this step
//	  - user: u1
//	    at: 2000
//	    undo: true              # undo u1's newest applied operation
//	assertions:
//	  - type: final_ids
//	    ids: [A, C]
//	  - type: cancelled_count
//	    count: 1
//
// Operations use the wire record format of package ir. A final flush
// always runs after the last step.
//
// # Assertion Types
//
//   - final_ids: the document's element ids, in order
//   - final_props: subset match on one element's properties
//   - cancelled_count: operations cancelled by concurrent edits
//   - trace_kinds: operation kinds of the flushed trace, in seq order
//
// # Deterministic Testing
//
// Each run uses:
//   - a manual time source set to each step's "at" value
//   - the scenario name as the document id
//   - an in-memory SQLite store (isolated per run)
//
// The trace is read back from the store, so golden files also pin the
// persisted form.
package harness

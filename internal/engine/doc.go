// Package engine implements the operation queue that drives conflict
// resolution for one collaborative document.
//
// Producers enqueue ir.OperationResult values as they arrive. Nothing is
// transformed until Flush, which:
//
//  1. takes and clears the pending buffer,
//  2. sorts it by timestamp (stable, so ties keep arrival order),
//  3. partitions the sorted run into concurrency groups: a new group starts
//     wherever the gap to the previous timestamp exceeds the tolerance,
//  4. resolves every group of two or more with transform.TransformAll,
//  5. appends the resolved results to the bounded history and returns them.
//
// The caller materializes the returned sequence with package apply.
//
// CONCURRENCY MODEL:
//
// Queue is synchronous and does no locking. It must be driven by a single
// writer; hosts receiving operations from several connections serialize
// access themselves (package session does this with a mutex). Clock is the
// one type here that is safe for concurrent use.
//
// KNOWN LIMITATION:
//
// Concurrency is inferred from timestamp proximity, not tracked causally.
// Two causally concurrent operations issued further apart than the
// tolerance (for example after network delay) are applied without being
// transformed against each other.
package engine

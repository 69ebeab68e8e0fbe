// Package ir holds the data model shared by every layer of the resolver:
// operations, elements, documents, operation results and the property
// values they carry.
//
// ir imports nothing internal. Everything else imports ir.
//
// Key constraints:
//   - Operation is a closed set. Only Insert, Delete, Modify and Move
//     implement it, so a kind outside the set cannot be constructed.
//   - Property values have no float type. Numbers are int64.
//   - Timestamps are logical int64 time units supplied by the producer.
//   - Canonical JSON (RFC 8785) is the only encoding used for content IDs
//     and for anything written to storage.
package ir

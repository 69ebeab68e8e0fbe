package store

import (
	"context"
	"fmt"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
)

// WriteResult appends r to docID's history at seq and returns its content
// ID. Uses ON CONFLICT DO NOTHING: writing a result that is already stored
// for docID is silently ignored and the original seq is kept.
func (s *Store) WriteResult(ctx context.Context, docID string, seq int64, r ir.OperationResult) (string, error) {
	id, err := ir.ResultID(r)
	if err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}

	opJSON, err := marshalOperation(r.Operation)
	if err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	invJSON, err := marshalOperation(r.Inverse)
	if err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}

	kind := ir.KindModify.String()
	if r.Operation != nil {
		kind = r.Operation.Kind().String()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operation_results
		(doc_id, id, seq, user_id, timestamp, kind, operation, inverse)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		docID,
		id,
		seq,
		r.UserID,
		r.Timestamp,
		kind,
		opJSON,
		invJSON,
	)
	if err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return id, nil
}

// WriteSnapshot stores doc as docID's materialized state at seq. A second
// snapshot at the same seq replaces the first.
func (s *Store) WriteSnapshot(ctx context.Context, docID string, seq int64, doc ir.Document) error {
	elements, err := marshalDocument(doc)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (doc_id, seq, elements)
		VALUES (?, ?, ?)
		ON CONFLICT(doc_id, seq) DO UPDATE SET elements = excluded.elements
	`, docID, seq, elements)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// PruneResults deletes docID's results with seq below before and returns
// how many rows were removed. Callers prune only what a snapshot covers.
func (s *Store) PruneResults(ctx context.Context, docID string, before int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM operation_results
		WHERE doc_id = ? AND seq < ?
	`, docID, before)
	if err != nil {
		return 0, fmt.Errorf("prune results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune results: %w", err)
	}
	return n, nil
}

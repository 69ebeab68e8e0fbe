package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
)

// StoredResult is a persisted operation result with its storage identity.
type StoredResult struct {
	ID     string
	DocID  string
	Seq    int64
	Result ir.OperationResult
}

// Snapshot is a materialized document at a history sequence number.
type Snapshot struct {
	DocID    string
	Seq      int64
	Document ir.Document
}

// ReadResults returns docID's results with seq greater than afterSeq,
// ordered by seq ASC, id ASC COLLATE BINARY. Pass 0 for the full history.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadResults(ctx context.Context, docID string, afterSeq int64) ([]StoredResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_id, seq, user_id, timestamp, operation, inverse
		FROM operation_results
		WHERE doc_id = ? AND seq > ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, docID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []StoredResult{}
	for rows.Next() {
		sr, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

func scanResult(rows *sql.Rows) (StoredResult, error) {
	var (
		sr            StoredResult
		opJSON, invJS string
	)
	if err := rows.Scan(&sr.ID, &sr.DocID, &sr.Seq, &sr.Result.UserID, &sr.Result.Timestamp, &opJSON, &invJS); err != nil {
		return StoredResult{}, fmt.Errorf("scan result: %w", err)
	}

	op, err := unmarshalOperation(opJSON)
	if err != nil {
		return StoredResult{}, fmt.Errorf("result %s: %w", sr.ID, err)
	}
	inv, err := unmarshalOperation(invJS)
	if err != nil {
		return StoredResult{}, fmt.Errorf("result %s: %w", sr.ID, err)
	}
	sr.Result.Operation = op
	sr.Result.Inverse = inv
	return sr, nil
}

// LastSeq returns the highest seq stored for docID across results and
// snapshots, or 0 for an unknown document.
func (s *Store) LastSeq(ctx context.Context, docID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM operation_results WHERE doc_id = ?
			UNION ALL
			SELECT seq FROM snapshots WHERE doc_id = ?
		)
	`, docID, docID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// LatestSnapshot returns docID's newest snapshot. The boolean is false when
// the document has none.
func (s *Store) LatestSnapshot(ctx context.Context, docID string) (Snapshot, bool, error) {
	var (
		snap     Snapshot
		elements string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT doc_id, seq, elements
		FROM snapshots
		WHERE doc_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, docID).Scan(&snap.DocID, &snap.Seq, &elements)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("latest snapshot: %w", err)
	}

	doc, err := unmarshalDocument(elements)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("latest snapshot: %w", err)
	}
	snap.Document = doc
	return snap, true, nil
}

// ListDocuments returns every document ID that has results or snapshots,
// sorted bytewise.
func (s *Store) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id FROM operation_results
		UNION
		SELECT doc_id FROM snapshots
		ORDER BY doc_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return ids, nil
}

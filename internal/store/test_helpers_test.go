package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
)

// createTestStore opens a fresh file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func deleteResult(id string, pos int, user string, ts int64) ir.OperationResult {
	return ir.OperationResult{
		Operation: ir.Delete{ElementID: id, Position: ir.At(pos)},
		Inverse:   ir.Insert{Position: ir.At(pos), Element: &ir.Element{ID: id}},
		Timestamp: ts,
		UserID:    user,
	}
}

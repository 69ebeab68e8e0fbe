package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
)

// MustObject converts a plain Go map to an ir.Object, failing the test on
// values the property model cannot represent (floats, channels, ...).
func MustObject(t testing.TB, m map[string]any) ir.Object {
	t.Helper()
	obj, err := ir.ObjectFromAny(m)
	require.NoError(t, err)
	return obj
}

// RequireIDs asserts the document's element ids in order.
func RequireIDs(t testing.TB, doc ir.Document, ids ...string) {
	t.Helper()
	if ids == nil {
		ids = []string{}
	}
	require.Equal(t, ids, doc.IDs())
}

// Package apply materializes operations against a document snapshot and
// derives inverse operations for undo.
//
// Nothing here fails. An operation missing a field its kind requires, or
// addressing an element that no longer exists, leaves the document as it
// was: late or partial traffic from unreliable transports is expected, and
// the element may have been deleted concurrently.
//
// Input documents are never mutated; every call returns a fresh slice.
package apply

import (
	"cmp"
	"slices"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
)

// ApplyOne returns doc with op applied.
func ApplyOne(doc ir.Document, op ir.Operation) ir.Document {
	out := doc.Clone()

	switch o := op.(type) {
	case ir.Insert:
		pos, ok := o.Position.Index()
		if !ok || o.Element == nil {
			return out
		}
		return slices.Insert(out, clamp(pos, len(out)), o.Element.Clone())

	case ir.Delete:
		i := indexOf(out, o.ElementID)
		if i < 0 {
			return out
		}
		return slices.Delete(out, i, i+1)

	case ir.Modify:
		i := indexOf(out, o.ElementID)
		if i < 0 || o.Value == nil {
			return out
		}
		out[i] = ir.Element{ID: out[i].ID, Props: out[i].Props.Patch(o.Value)}
		return out

	case ir.Move:
		pos, ok := o.Position.Index()
		i := indexOf(out, o.ElementID)
		if !ok || i < 0 {
			return out
		}
		el := out[i]
		out = slices.Delete(out, i, i+1)
		return slices.Insert(out, clamp(pos, len(out)), el)
	}

	return out
}

// ApplyAll folds ApplyOne over results ordered by ascending timestamp.
// Equal timestamps keep their relative order.
func ApplyAll(doc ir.Document, results []ir.OperationResult) ir.Document {
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b ir.OperationResult) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	out := doc.Clone()
	for _, r := range ordered {
		out = ApplyOne(out, r.Operation)
	}
	return out
}

// indexOf treats the empty id as absent so that the no-op sentinel and
// id-less deletes never match an element.
func indexOf(doc ir.Document, id string) int {
	if id == "" {
		return -1
	}
	return doc.IndexOf(id)
}

// clamp bounds an insertion index to [0, n]. Indices past the end append;
// negative ones insert at the front.
func clamp(pos, n int) int {
	return max(0, min(pos, n))
}

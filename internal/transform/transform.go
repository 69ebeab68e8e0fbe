// Package transform resolves pairs of concurrently issued operations.
//
// Transform(a, b) returns (a', b') such that applying a then b' or b then a'
// leaves equivalent documents. Everything here is a pure function over
// immutable values: no state, no logging, no errors.
package transform

import "github.com/RafaelSullivam/editor-sub001/internal/ir"

// Interfere reports whether a and b could conflict: they name the same
// element, or both are position-bearing (insert/delete) with positions at
// most one apart.
func Interfere(a, b ir.Operation) bool {
	if a == nil || b == nil {
		return false
	}
	if id := a.Target(); id != "" && id == b.Target() {
		return true
	}
	pa, okA := slot(a)
	pb, okB := slot(b)
	if !okA || !okB {
		return false
	}
	return abs(pa-pb) <= 1
}

// slot returns the position of insert and delete operations, the only kinds
// that occupy a slot for interference purposes.
func slot(op ir.Operation) (int, bool) {
	switch o := op.(type) {
	case ir.Insert:
		return o.Position.Index()
	case ir.Delete:
		return o.Position.Index()
	}
	return 0, false
}

// Transform rewrites a and b against each other. Operations that do not
// interfere come back unchanged, as do pairs without a rule.
func Transform(a, b ir.Operation) (ir.Operation, ir.Operation) {
	if !Interfere(a, b) {
		return a, b
	}

	switch x := a.(type) {
	case ir.Insert:
		switch y := b.(type) {
		case ir.Insert:
			return insertInsert(x, y)
		case ir.Delete:
			if before(y.Position, x.Position) {
				x.Position = x.Position.Shift(-1)
			}
			return x, y
		case ir.Move:
			if atOrBefore(y.Position, x.Position) {
				x.Position = x.Position.Shift(1)
			}
			return x, y
		}

	case ir.Delete:
		switch y := b.(type) {
		case ir.Insert:
			if atOrBefore(y.Position, x.Position) {
				x.Position = x.Position.Shift(1)
			}
			return x, y
		case ir.Delete:
			return deleteDelete(x, y)
		case ir.Modify:
			if sameTarget(x, y) {
				return x, ir.Noop()
			}
		case ir.Move:
			if sameTarget(x, y) {
				return x, ir.Noop()
			}
		}

	case ir.Modify:
		switch y := b.(type) {
		case ir.Modify:
			if sameTarget(x, y) {
				x.Value = x.Value.Merge(y.Value)
				return x, ir.Noop()
			}
		case ir.Delete:
			if sameTarget(x, y) {
				return ir.Noop(), y
			}
		}
		// Modify against move composes: both are kept.

	case ir.Move:
		switch y := b.(type) {
		case ir.Move:
			// The later move wins.
			if sameTarget(x, y) {
				return ir.Noop(), y
			}
		case ir.Delete:
			if sameTarget(x, y) {
				return ir.Noop(), y
			}
		}
	}

	return a, b
}

// insertInsert keeps the lower slot in place and shifts the other right. On
// a tie the first operation keeps the slot.
func insertInsert(a, b ir.Insert) (ir.Operation, ir.Operation) {
	pa, okA := a.Position.Index()
	pb, okB := b.Position.Index()
	if !okA || !okB {
		return a, b
	}
	if pb < pa {
		a.Position = ir.At(pa + 1)
	} else {
		b.Position = ir.At(pb + 1)
	}
	return a, b
}

// deleteDelete cancels the first of two deletes aimed at the same slot or
// element. Otherwise the higher one shifts down.
func deleteDelete(a, b ir.Delete) (ir.Operation, ir.Operation) {
	pa, okA := a.Position.Index()
	pb, okB := b.Position.Index()
	if (okA && okB && pa == pb) || sameTarget(a, b) {
		return ir.Noop(), b
	}
	if !okA || !okB {
		return a, b
	}
	if pa > pb {
		a.Position = ir.At(pa - 1)
	} else {
		b.Position = ir.At(pb - 1)
	}
	return a, b
}

// TransformAll resolves a concurrency group. For every pair i < j the pair
// is transformed and both slots are replaced, so later pairs see the
// results of earlier ones. The input slice is not modified.
func TransformAll(ops []ir.Operation) []ir.Operation {
	out := make([]ir.Operation, len(ops))
	copy(out, ops)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			out[i], out[j] = Transform(out[i], out[j])
		}
	}
	return out
}

func sameTarget(a, b ir.Operation) bool {
	id := a.Target()
	return id != "" && id == b.Target()
}

// before reports p < q with both set.
func before(p, q ir.Pos) bool {
	pi, okP := p.Index()
	qi, okQ := q.Index()
	return okP && okQ && pi < qi
}

// atOrBefore reports p <= q with both set.
func atOrBefore(p, q ir.Pos) bool {
	pi, okP := p.Index()
	qi, okQ := q.Index()
	return okP && okQ && pi <= qi
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

package apply

import "github.com/RafaelSullivam/editor-sub001/internal/ir"

// PriorState is what the target of an operation looked like before the
// operation ran. The editing layer captures it (see Capture); the
// applicator keeps no history of its own.
type PriorState struct {
	// Element is the target as it was, or nil when it did not exist.
	Element *ir.Element
	// Position is the target's index, or the insertion index for inserts.
	Position ir.Pos
}

// Capture records the prior state of op's target in doc. It must be
// called before op is applied.
func Capture(doc ir.Document, op ir.Operation) PriorState {
	if ins, ok := op.(ir.Insert); ok {
		return PriorState{Position: ins.Position}
	}
	i := indexOf(doc, targetOf(op))
	if i < 0 {
		return PriorState{}
	}
	el := doc[i].Clone()
	return PriorState{Element: &el, Position: ir.At(i)}
}

// GenerateInverse returns the operation that restores prior after op.
//
//   - Insert becomes a Delete of the same element at the same position.
//   - Delete becomes an Insert of the removed element.
//   - Modify becomes a Modify back to OldValue. Without OldValue the old
//     values of the touched keys are read from prior; keys that did not
//     exist are unset with Null.
//   - Move becomes a Move back to prior's position.
//
// The Move inverse only round-trips when nothing reindexed the document in
// between.
func GenerateInverse(op ir.Operation, prior PriorState) ir.Operation {
	if ir.IsNoop(op) {
		return ir.Noop()
	}

	switch o := op.(type) {
	case ir.Insert:
		if o.Target() == "" {
			return ir.Noop()
		}
		return ir.Delete{ElementID: o.Target(), Position: o.Position}

	case ir.Delete:
		if prior.Element == nil {
			return ir.Noop()
		}
		pos := o.Position
		if !pos.IsSet() {
			pos = prior.Position
		}
		el := prior.Element.Clone()
		return ir.Insert{Position: pos, Element: &el}

	case ir.Modify:
		old := o.OldValue
		if old == nil && prior.Element != nil && o.Value != nil {
			old = make(ir.Object, len(o.Value))
			for k := range o.Value {
				if v, ok := prior.Element.Props[k]; ok {
					old[k] = v
				} else {
					old[k] = ir.Null{}
				}
			}
		}
		return ir.Modify{ElementID: o.ElementID, Value: old, OldValue: o.Value}

	case ir.Move:
		return ir.Move{ElementID: o.ElementID, Position: prior.Position}
	}

	return ir.Noop()
}

func targetOf(op ir.Operation) string {
	if op == nil {
		return ""
	}
	return op.Target()
}

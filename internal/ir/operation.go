package ir

import (
	"errors"
	"fmt"
)

// Kind identifies which variant an Operation is.
type Kind int

const (
	KindInsert Kind = iota + 1
	KindDelete
	KindModify
	KindMove
)

var kindNames = map[Kind]string{
	KindInsert: "insert",
	KindDelete: "delete",
	KindModify: "modify",
	KindMove:   "move",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ErrUnknownKind is returned when decoding an operation whose kind is not
// one of insert, delete, modify or move.
var ErrUnknownKind = errors.New("unknown operation kind")

// ParseKind maps a wire name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Operation is the atomic unit of change. It is sealed: Insert, Delete,
// Modify and Move are the only implementations.
//
// Variants are plain values. Transformations return modified copies and
// never touch their inputs.
type Operation interface {
	Kind() Kind
	// Target is the id of the element the operation addresses, or "" when
	// it has none.
	Target() string
	operation()
}

// Insert splices Element into the sequence at Position. Element.ID may be
// empty for a brand-new element that has not been assigned an id yet.
type Insert struct {
	Position Pos
	Element  *Element
}

// Delete removes the element with ElementID. Position is only used when
// comparing against another position-bearing operation.
type Delete struct {
	ElementID string
	Position  Pos
}

// Modify merges Value onto the element's properties. OldValue holds the
// previous values of the same keys when the producer knows them.
//
// A Modify with no ElementID is the no-op sentinel.
type Modify struct {
	ElementID string
	Value     Object
	OldValue  Object
}

// Move relocates the element to Position, interpreted against the sequence
// with the element already removed.
type Move struct {
	ElementID string
	Position  Pos
}

func (Insert) Kind() Kind { return KindInsert }
func (Delete) Kind() Kind { return KindDelete }
func (Modify) Kind() Kind { return KindModify }
func (Move) Kind() Kind   { return KindMove }

func (o Insert) Target() string {
	if o.Element == nil {
		return ""
	}
	return o.Element.ID
}

func (o Delete) Target() string { return o.ElementID }
func (o Modify) Target() string { return o.ElementID }
func (o Move) Target() string   { return o.ElementID }

func (Insert) operation() {}
func (Delete) operation() {}
func (Modify) operation() {}
func (Move) operation()   {}

// Noop returns the sentinel used for an operation cancelled by
// transformation.
func Noop() Operation {
	return Modify{}
}

// IsNoop reports whether op is the no-op sentinel. A nil operation counts.
func IsNoop(op Operation) bool {
	if op == nil {
		return true
	}
	m, ok := op.(Modify)
	return ok && m.ElementID == ""
}

// Describe renders op for logs and CLI output.
func Describe(op Operation) string {
	if IsNoop(op) {
		return "noop"
	}
	switch o := op.(type) {
	case Insert:
		return fmt.Sprintf("insert %s@%s", o.Target(), o.Position)
	case Delete:
		return fmt.Sprintf("delete %s@%s", o.ElementID, o.Position)
	case Modify:
		return fmt.Sprintf("modify %s %d keys", o.ElementID, len(o.Value))
	case Move:
		return fmt.Sprintf("move %s->%s", o.ElementID, o.Position)
	}
	return fmt.Sprintf("%T", op)
}

package ir

import (
	"encoding/json"
	"fmt"
)

// Operations travel as one loose record regardless of kind:
//
//	{"kind": "move", "element_id": "b", "position": 0}
//
// Fields a kind does not use are omitted on encode and ignored on decode.
// Missing or mistyped fields decode to their zero value rather than an
// error; the applicator turns those into no-ops. Only an unknown kind is
// rejected.
const (
	fieldKind      = "kind"
	fieldElementID = "element_id"
	fieldPosition  = "position"
	fieldData      = "data"
	fieldValue     = "value"
	fieldOldValue  = "old_value"
)

// EncodeOperation returns the wire record for op. A nil operation encodes
// as the no-op sentinel.
func EncodeOperation(op Operation) Object {
	if op == nil {
		op = Noop()
	}
	rec := Object{fieldKind: String(op.Kind().String())}
	switch o := op.(type) {
	case Insert:
		putPos(rec, o.Position)
		if o.Element != nil {
			putString(rec, fieldElementID, o.Element.ID)
			rec[fieldData] = encodeElement(*o.Element)
		}
	case Delete:
		putString(rec, fieldElementID, o.ElementID)
		putPos(rec, o.Position)
	case Modify:
		putString(rec, fieldElementID, o.ElementID)
		if o.Value != nil {
			rec[fieldValue] = o.Value
		}
		if o.OldValue != nil {
			rec[fieldOldValue] = o.OldValue
		}
	case Move:
		putString(rec, fieldElementID, o.ElementID)
		putPos(rec, o.Position)
	}
	return rec
}

// DecodeOperation builds the variant named by rec's kind.
func DecodeOperation(rec Object) (Operation, error) {
	kindName, _ := rec[fieldKind].(String)
	kind, err := ParseKind(string(kindName))
	if err != nil {
		return nil, err
	}

	id, _ := rec[fieldElementID].(String)
	pos := NoPos
	if n, ok := rec[fieldPosition].(Int); ok {
		pos = At(int(n))
	}

	switch kind {
	case KindInsert:
		op := Insert{Position: pos}
		if data, ok := rec[fieldData].(Object); ok {
			op.Element, _ = decodeElement(data)
		}
		if op.Element != nil && op.Element.ID == "" {
			op.Element.ID = string(id)
		}
		return op, nil
	case KindDelete:
		return Delete{ElementID: string(id), Position: pos}, nil
	case KindModify:
		value, _ := rec[fieldValue].(Object)
		old, _ := rec[fieldOldValue].(Object)
		return Modify{ElementID: string(id), Value: value, OldValue: old}, nil
	case KindMove:
		return Move{ElementID: string(id), Position: pos}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
}

// MarshalOperation encodes op as canonical JSON.
func MarshalOperation(op Operation) ([]byte, error) {
	return MarshalCanonical(EncodeOperation(op))
}

// UnmarshalOperation decodes a JSON wire record.
func UnmarshalOperation(data []byte) (Operation, error) {
	var rec Object
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode operation: %w", err)
	}
	return DecodeOperation(rec)
}

func encodeElement(e Element) Object {
	rec := Object{"id": String(e.ID)}
	if e.Props != nil {
		rec["props"] = e.Props
	}
	return rec
}

// decodeElement returns false only when rec is not an element record at
// all. An element without props decodes with nil Props.
func decodeElement(rec Object) (*Element, bool) {
	if rec == nil {
		return nil, false
	}
	id, _ := rec["id"].(String)
	props, _ := rec["props"].(Object)
	return &Element{ID: string(id), Props: props}, true
}

func putString(rec Object, key, s string) {
	if s != "" {
		rec[key] = String(s)
	}
}

func putPos(rec Object, p Pos) {
	if i, ok := p.Index(); ok {
		rec[fieldPosition] = Int(i)
	}
}

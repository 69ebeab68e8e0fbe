package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the property values an element can hold.
// Only Null, String, Int, Bool, Array and Object implement it.
type Value interface {
	value()
}

// Null is an explicit JSON null. Inside a Modify payload it unsets the
// property instead of storing null.
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string property value.
type String string

func (String) value() {}

// Int is an integer property value. There is no float counterpart.
type Int int64

func (Int) value() {}

// Bool is a boolean property value.
type Bool bool

func (Bool) value() {}

// Array is an ordered list of values.
type Array []Value

func (Array) value() {}

// Object maps property names to values. Iterate with SortedKeys when the
// order matters.
type Object map[string]Value

func (Object) value() {}

// SortedKeys returns the keys in RFC 8785 order (UTF-16 code units, which
// differs from Go's byte-wise string order outside the BMP).
func (o Object) SortedKeys() []string {
	keys := slices.Collect(maps.Keys(o))
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// Clone returns a shallow copy. A nil object stays nil.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	return maps.Clone(o)
}

// Merge returns a new object holding o's fields overwritten by over's on
// key collision. Null values are kept as values so that an unset intent
// survives a merge.
func (o Object) Merge(over Object) Object {
	out := make(Object, len(o)+len(over))
	maps.Copy(out, o)
	maps.Copy(out, over)
	return out
}

// Patch returns a new object with p applied on top of o: Null deletes the
// key, anything else overwrites it.
func (o Object) Patch(p Object) Object {
	out := make(Object, len(o)+len(p))
	maps.Copy(out, o)
	for k, v := range p {
		if _, unset := v.(Null); unset {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// UnmarshalJSON implements json.Unmarshaler. Floats are rejected.
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := ParseValue(data)
	if err != nil {
		return err
	}
	obj, ok := v.(Object)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	*o = obj
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. Floats are rejected.
func (a *Array) UnmarshalJSON(data []byte) error {
	v, err := ParseValue(data)
	if err != nil {
		return err
	}
	arr, ok := v.(Array)
	if !ok {
		return fmt.Errorf("expected JSON array, got %T", v)
	}
	*a = arr
	return nil
}

// ParseValue decodes a single JSON document into a Value. Numbers must be
// integers that fit in int64.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// FromAny converts decoded JSON or YAML data into a Value.
//
// Accepted inputs are nil, bool, string, the Go integer types, json.Number,
// []any, map[string]any and anything that already is a Value. Integral
// float64 values are accepted because some decoders produce them for whole
// numbers; fractional ones are rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return Int(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not allowed: %s", val)
		}
		return Int(n), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("floats are not allowed: %v", val)
		}
		return Int(int64(val)), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ObjectFromAny is FromAny restricted to objects. A nil map yields a nil
// Object.
func ObjectFromAny(m map[string]any) (Object, error) {
	if m == nil {
		return nil, nil
	}
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.(Object), nil
}

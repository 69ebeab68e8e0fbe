package ir

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Element is one addressable item of a layout. Props is the full property
// payload; it may be nil.
type Element struct {
	ID    string
	Props Object
}

// Clone copies the element and its top-level property map.
func (e Element) Clone() Element {
	return Element{ID: e.ID, Props: e.Props.Clone()}
}

// MarshalJSON implements json.Marshaler using the canonical encoding.
func (e Element) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(encodeElement(e))
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Element) UnmarshalJSON(data []byte) error {
	var rec Object
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	el, ok := decodeElement(rec)
	if !ok {
		return fmt.Errorf("element: malformed record")
	}
	*e = *el
	return nil
}

// Document is the ordered element sequence. Order is the layering order
// the editor renders.
type Document []Element

// NewDocument builds a document of property-less elements, mostly for tests
// and fixtures.
func NewDocument(ids ...string) Document {
	doc := make(Document, len(ids))
	for i, id := range ids {
		doc[i] = Element{ID: id}
	}
	return doc
}

// IndexOf returns the index of the first element with id, or -1.
func (d Document) IndexOf(id string) int {
	return slices.IndexFunc(d, func(e Element) bool { return e.ID == id })
}

// Find returns the first element with id.
func (d Document) Find(id string) (Element, bool) {
	i := d.IndexOf(id)
	if i < 0 {
		return Element{}, false
	}
	return d[i], true
}

// Clone returns a copy that shares no slice storage with d.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}
	return slices.Clone(d)
}

// IDs returns element ids in document order.
func (d Document) IDs() []string {
	ids := make([]string, len(d))
	for i, e := range d {
		ids[i] = e.ID
	}
	return ids
}

// IDSet returns the ids as an unordered set.
func (d Document) IDSet() mapset.Set[string] {
	return mapset.NewThreadUnsafeSet(d.IDs()...)
}

// Equal reports whether both documents hold the same elements in the same
// order.
func (d Document) Equal(other Document) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i].ID != other[i].ID || !propsEqual(d[i].Props, other[i].Props) {
			return false
		}
	}
	return true
}

// propsEqual treats nil and empty property maps as equal.
func propsEqual(a, b Object) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// MarshalJSON implements json.Marshaler using the canonical encoding.
func (d Document) MarshalJSON() ([]byte, error) {
	arr := make(Array, len(d))
	for i, e := range d {
		arr[i] = encodeElement(e)
	}
	return MarshalCanonical(arr)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	var arr Array
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	doc := make(Document, 0, len(arr))
	for i, v := range arr {
		rec, _ := v.(Object)
		el, ok := decodeElement(rec)
		if !ok {
			return fmt.Errorf("document[%d]: malformed element", i)
		}
		doc = append(doc, *el)
	}
	*d = doc
	return nil
}

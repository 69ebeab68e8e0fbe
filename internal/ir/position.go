package ir

import "strconv"

// Pos is an optional index into a document's element sequence. The zero
// value is unset.
type Pos struct {
	index int
	set   bool
}

// NoPos is the unset position.
var NoPos = Pos{}

// At returns a set position.
func At(i int) Pos {
	return Pos{index: i, set: true}
}

// Index returns the index and whether it is set.
func (p Pos) Index() (int, bool) {
	return p.index, p.set
}

// IsSet reports whether the position carries an index.
func (p Pos) IsSet() bool {
	return p.set
}

// Shift returns the position moved by delta. Unset positions stay unset.
func (p Pos) Shift(delta int) Pos {
	if !p.set {
		return p
	}
	return At(p.index + delta)
}

func (p Pos) String() string {
	if !p.set {
		return "-"
	}
	return strconv.Itoa(p.index)
}

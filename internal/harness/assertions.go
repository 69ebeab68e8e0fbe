package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		mark := ""
		if event.Cancelled {
			mark = " (cancelled)"
		}
		fmt.Fprintf(&buf, "  [%d] t=%d %s %s%s\n",
			event.Seq, event.Timestamp, event.UserID, ir.Describe(event.Operation), mark)
	}
	return buf.String()
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertFinalIDs:
		return assertFinalIDs(r, a)
	case AssertFinalProps:
		return assertFinalProps(r, a)
	case AssertCancelledCount:
		return assertCancelledCount(r, a)
	case AssertTraceKinds:
		return assertTraceKinds(r, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertFinalIDs(r *Result, a Assertion) error {
	want := a.IDs
	if want == nil {
		want = []string{}
	}
	got := r.Document.IDs()
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalIDs,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    r.Trace,
	}
}

// assertFinalProps checks that every expected key has the expected value.
// Other keys on the element are ignored. A null expectation means the key
// must be absent.
func assertFinalProps(r *Result, a Assertion) error {
	el, ok := r.Document.Find(a.Element)
	if !ok {
		return &AssertionError{
			Type:     AssertFinalProps,
			Expected: fmt.Sprintf("element %q", a.Element),
			Actual:   "element not in document",
			Trace:    r.Trace,
		}
	}

	want, err := ir.ObjectFromAny(a.Expect)
	if err != nil {
		return fmt.Errorf("%s: %w", AssertFinalProps, err)
	}
	for _, k := range want.SortedKeys() {
		got, present := el.Props[k]
		if _, absent := want[k].(ir.Null); absent {
			if present {
				return propMismatch(r, a.Element, k, "absent", got)
			}
			continue
		}
		if !present || !reflect.DeepEqual(want[k], got) {
			return propMismatch(r, a.Element, k, want[k], got)
		}
	}
	return nil
}

func propMismatch(r *Result, element, key string, want, got any) error {
	return &AssertionError{
		Type:     AssertFinalProps,
		Expected: fmt.Sprintf("%s.%s = %v", element, key, want),
		Actual:   fmt.Sprintf("%s.%s = %v", element, key, got),
		Trace:    r.Trace,
	}
}

func assertCancelledCount(r *Result, a Assertion) error {
	if r.Cancelled == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCancelledCount,
		Expected: fmt.Sprintf("%d cancelled", a.Count),
		Actual:   fmt.Sprintf("%d cancelled", r.Cancelled),
		Trace:    r.Trace,
	}
}

func assertTraceKinds(r *Result, a Assertion) error {
	got := r.Kinds()
	if slices.Equal(a.Kinds, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceKinds,
		Expected: fmt.Sprintf("%v", a.Kinds),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    r.Trace,
	}
}

package harness

import "github.com/RafaelSullivam/editor-sub001/internal/ir"

// TraceEvent is one persisted result as the store returned it.
type TraceEvent struct {
	Seq       int64
	Timestamp int64
	UserID    string
	Operation ir.Operation

	// Cancelled marks an operation a concurrent edit turned into a no-op.
	Cancelled bool
}

func (e TraceEvent) record() ir.Object {
	return ir.Object{
		"seq":       ir.Int(e.Seq),
		"timestamp": ir.Int(e.Timestamp),
		"user_id":   ir.String(e.UserID),
		"operation": ir.EncodeOperation(e.Operation),
		"cancelled": ir.Bool(e.Cancelled),
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool

	// Trace lists flushed results in seq order.
	Trace []TraceEvent

	// Document is the final materialized document.
	Document ir.Document

	// Groups counts concurrency groups across all flushes.
	Groups int

	// Cancelled counts operations cancelled across all flushes.
	Cancelled int

	// Errors holds one message per failed assertion.
	Errors []string
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Document: ir.Document{},
		Errors:   []string{},
	}
}

// AddError records a failed assertion.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Kinds returns the trace's operation kinds in order.
func (r *Result) Kinds() []string {
	kinds := make([]string, len(r.Trace))
	for i, e := range r.Trace {
		op := e.Operation
		if op == nil {
			op = ir.Noop()
		}
		kinds[i] = op.Kind().String()
	}
	return kinds
}

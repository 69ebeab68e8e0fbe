package engine

import (
	"io"
	"log/slog"
	"slices"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
	"github.com/RafaelSullivam/editor-sub001/internal/transform"
)

// Defaults, in the units of WallClock (milliseconds).
const (
	DefaultTolerance  int64 = 100
	DefaultRetention  int64 = 300_000
	DefaultMaxHistory       = 10_000
)

// State is the queue's position in its Idle -> Buffering -> Flushing cycle.
type State int

const (
	StateIdle State = iota
	StateBuffering
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StateFlushing:
		return "flushing"
	}
	return "unknown"
}

// FlushReport summarizes the most recent Flush.
type FlushReport struct {
	Results    int // results returned
	Groups     int // concurrency groups, singletons included
	Concurrent int // results that were in a group of two or more
	Cancelled  int // results turned into the no-op sentinel
}

// Queue buffers operation results for one document and resolves concurrent
// ones on Flush. See the package documentation for the algorithm and the
// single-writer contract.
type Queue struct {
	pending []ir.OperationResult
	applied []ir.OperationResult
	state   State
	last    FlushReport

	tolerance  int64
	retention  int64
	maxHistory int
	now        TimeSource
	logger     *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithTolerance sets the largest timestamp gap that still counts as
// concurrent. Negative values are treated as 0.
func WithTolerance(t int64) Option {
	return func(q *Queue) {
		q.tolerance = max(t, 0)
	}
}

// WithRetention sets the default age used by Cleanup.
func WithRetention(r int64) Option {
	return func(q *Queue) {
		if r > 0 {
			q.retention = r
		}
	}
}

// WithMaxHistory caps how many results History keeps; the oldest are
// dropped first. 0 disables the cap.
func WithMaxHistory(n int) Option {
	return func(q *Queue) {
		q.maxHistory = max(n, 0)
	}
}

// WithTimeSource replaces WallClock, mainly for tests and replays.
func WithTimeSource(ts TimeSource) Option {
	return func(q *Queue) {
		if ts != nil {
			q.now = ts
		}
	}
}

// WithLogger sets the logger used for diagnostics. By default the queue is
// silent.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewQueue returns an idle queue.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		tolerance:  DefaultTolerance,
		retention:  DefaultRetention,
		maxHistory: DefaultMaxHistory,
		now:        WallClock,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends r to the pending buffer in arrival order. Nothing is
// transformed until Flush.
func (q *Queue) Enqueue(r ir.OperationResult) {
	q.pending = append(q.pending, r)
	q.state = StateBuffering
}

// Flush resolves everything pending and returns it in timestamp order.
// The returned results are also appended to History. Flush never fails:
// malformed operations pass through and degrade to no-ops when applied.
func (q *Queue) Flush() []ir.OperationResult {
	q.state = StateFlushing
	defer func() { q.state = StateIdle }()

	batch := q.pending
	q.pending = nil
	if len(batch) == 0 {
		q.last = FlushReport{}
		return []ir.OperationResult{}
	}

	groups := Partition(SortByTimestamp(batch), q.tolerance)

	report := FlushReport{Groups: len(groups)}
	out := make([]ir.OperationResult, 0, len(batch))
	for _, g := range groups {
		resolved, cancelled := q.resolve(g)
		if len(g) > 1 {
			report.Concurrent += len(g)
		}
		report.Cancelled += cancelled
		out = append(out, resolved...)
	}
	report.Results = len(out)
	q.last = report

	q.applied = append(q.applied, out...)
	q.trimHistory()

	q.logger.Debug("queue flushed",
		"results", report.Results,
		"groups", report.Groups,
		"concurrent", report.Concurrent,
		"cancelled", report.Cancelled,
	)

	return slices.Clone(out)
}

// resolve transforms a concurrency group pairwise. Singletons pass through.
// It returns the resolved group and how many members were cancelled.
func (q *Queue) resolve(group []ir.OperationResult) ([]ir.OperationResult, int) {
	if len(group) < 2 {
		return group, 0
	}

	ops := make([]ir.Operation, len(group))
	for i, r := range group {
		ops[i] = r.Operation
	}
	transformed := transform.TransformAll(ops)

	cancelled := 0
	out := make([]ir.OperationResult, len(group))
	for i, r := range group {
		out[i] = r.WithOperation(transformed[i])
		if ir.IsNoop(transformed[i]) && !ir.IsNoop(r.Operation) {
			// Undoing something that never happened must do nothing too.
			out[i].Inverse = ir.Noop()
			cancelled++
			q.logger.Debug("operation cancelled by concurrent edit",
				"user", r.UserID,
				"timestamp", r.Timestamp,
				"operation", ir.Describe(r.Operation),
			)
		}
	}
	return out, cancelled
}

func (q *Queue) trimHistory() {
	if q.maxHistory > 0 && len(q.applied) > q.maxHistory {
		drop := len(q.applied) - q.maxHistory
		q.applied = slices.Delete(q.applied, 0, drop)
	}
}

// Cleanup drops history entries whose timestamp is older than now-maxAge
// and returns how many were removed. maxAge <= 0 uses the configured
// retention. Pending results are never touched.
func (q *Queue) Cleanup(maxAge int64) int {
	if maxAge <= 0 {
		maxAge = q.retention
	}
	cutoff := q.now.Now() - maxAge

	before := len(q.applied)
	q.applied = slices.DeleteFunc(q.applied, func(r ir.OperationResult) bool {
		return r.Timestamp < cutoff
	})
	removed := before - len(q.applied)
	if removed > 0 {
		q.logger.Debug("history cleaned up", "removed", removed, "cutoff", cutoff)
	}
	return removed
}

// History returns a snapshot of resolved results, oldest first.
func (q *Queue) History() []ir.OperationResult {
	return slices.Clone(q.applied)
}

// Pending returns a snapshot of results awaiting Flush, in arrival order.
func (q *Queue) Pending() []ir.OperationResult {
	return slices.Clone(q.pending)
}

// Len returns the number of pending results.
func (q *Queue) Len() int {
	return len(q.pending)
}

// State reports where the queue is in its cycle.
func (q *Queue) State() State {
	return q.state
}

// LastReport describes the most recent Flush.
func (q *Queue) LastReport() FlushReport {
	return q.last
}

// Retention returns the default history window used by Cleanup.
func (q *Queue) Retention() int64 {
	return q.retention
}

// Tolerance returns the configured concurrency window.
func (q *Queue) Tolerance() int64 {
	return q.tolerance
}

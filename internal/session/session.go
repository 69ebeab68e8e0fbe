package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/RafaelSullivam/editor-sub001/internal/apply"
	"github.com/RafaelSullivam/editor-sub001/internal/engine"
	"github.com/RafaelSullivam/editor-sub001/internal/ir"
	"github.com/RafaelSullivam/editor-sub001/internal/metrics"
	"github.com/RafaelSullivam/editor-sub001/internal/store"
)

// Store is the persistence a session writes to. *store.Store implements it.
type Store interface {
	WriteResult(ctx context.Context, docID string, seq int64, r ir.OperationResult) (string, error)
	WriteSnapshot(ctx context.Context, docID string, seq int64, doc ir.Document) error
}

// HistoryReader is what Restore reads from. *store.Store implements it.
type HistoryReader interface {
	LatestSnapshot(ctx context.Context, docID string) (store.Snapshot, bool, error)
	ReadResults(ctx context.Context, docID string, afterSeq int64) ([]store.StoredResult, error)
}

// resultKey identifies a result by author and timestamp. Edit stamps are
// strictly increasing per user, so the pair is unique within a session.
type resultKey struct {
	user string
	ts   int64
}

// Session is one collaborative document. See the package documentation.
type Session struct {
	mu sync.Mutex

	id       string
	doc      ir.Document
	queue    *engine.Queue
	seq      *engine.Clock
	store    Store
	metrics  *metrics.Recorder
	now      engine.TimeSource
	logger   *slog.Logger
	autosave time.Duration

	queueOpts []engine.Option

	lastTS   map[string]int64
	undo     map[string][]ir.OperationResult
	undoing  mapset.Set[resultKey]
	presence map[string]Cursor

	// Content IDs of results already enqueued, with their timestamps, so a
	// redelivered result is applied once. Pruned with the history window.
	delivered map[string]int64
}

// NewID returns a time-ordered document ID.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// New starts a session on a copy of doc.
func New(doc ir.Document, opts ...Option) *Session {
	s := &Session{
		doc:       doc.Clone(),
		seq:       engine.NewClock(),
		now:       engine.WallClock,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		autosave:  DefaultAutosaveInterval,
		lastTS:    make(map[string]int64),
		undo:      make(map[string][]ir.OperationResult),
		undoing:   mapset.NewThreadUnsafeSet[resultKey](),
		presence:  make(map[string]Cursor),
		delivered: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = NewID()
	}

	s.logger = s.logger.With("doc_id", s.id)

	qopts := append([]engine.Option{
		engine.WithTimeSource(s.now),
		engine.WithLogger(s.logger),
	}, s.queueOpts...)
	s.queue = engine.NewQueue(qopts...)
	return s
}

// Load restores docID from r and returns a session that continues its
// history. Pass WithStore to keep persisting.
func Load(ctx context.Context, r HistoryReader, docID string, opts ...Option) (*Session, error) {
	doc, lastSeq, err := Restore(ctx, r, docID)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithID(docID), withStartSeq(lastSeq))
	return New(doc, opts...), nil
}

// ID returns the document ID.
func (s *Session) ID() string {
	return s.id
}

// Document returns a copy of the materialized document.
func (s *Session) Document() ir.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Seq returns the sequence number of the last flushed result.
func (s *Session) Seq() int64 {
	return s.seq.Current()
}

// History returns the queue's retained history, oldest first.
func (s *Session) History() []ir.OperationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.History()
}

// Pending returns the number of operations awaiting Flush.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// LastReport describes the most recent flush.
func (s *Session) LastReport() engine.FlushReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.LastReport()
}

// Edit records a local edit by userID. The inverse is derived from the
// target's state in the optimistic view. The returned result is what was
// enqueued.
func (s *Session) Edit(userID string, op ir.Operation) ir.OperationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := apply.ApplyAll(s.doc, s.queue.Pending())
	prior := apply.Capture(view, op)
	r := ir.OperationResult{
		Operation: op,
		Inverse:   apply.GenerateInverse(op, prior),
		Timestamp: s.stamp(userID),
		UserID:    userID,
	}
	s.markDelivered(r)
	s.enqueue(r)
	return r
}

// Submit enqueues a result built elsewhere, typically received from a
// remote peer. Its timestamp is kept as is. Delivery is at least once, so
// a result this session has already enqueued (including an echo of one
// of its own edits) is dropped; Submit reports whether r was enqueued.
func (s *Session) Submit(r ir.OperationResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Inverse == nil {
		r.Inverse = ir.Noop()
	}
	if !s.markDelivered(r) {
		s.logger.Debug("duplicate result dropped", "user", r.UserID, "timestamp", r.Timestamp)
		return false
	}
	if r.Timestamp > s.lastTS[r.UserID] {
		s.lastTS[r.UserID] = r.Timestamp
	}
	s.enqueue(r)
	return true
}

// Undo enqueues the inverse of userID's newest applied operation that has
// not been undone yet. It reports false when there is nothing to undo.
// Undo results are not themselves pushed on the undo stack.
func (s *Session) Undo(userID string) (ir.OperationResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stack := s.undo[userID]
	if len(stack) == 0 {
		return ir.OperationResult{}, false
	}
	last := stack[len(stack)-1]
	s.undo[userID] = stack[:len(stack)-1]

	r := ir.OperationResult{
		Operation: last.Inverse,
		Inverse:   last.Operation,
		Timestamp: s.stamp(userID),
		UserID:    userID,
	}
	s.undoing.Add(resultKey{user: userID, ts: r.Timestamp})
	s.markDelivered(r)
	s.enqueue(r)
	return r, true
}

// Flush resolves pending operations, applies them to the document, assigns
// sequence numbers and persists them. The document is updated even when
// persisting fails; the error reports the first result that could not be
// written.
func (s *Session) Flush(ctx context.Context) ([]ir.OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush(ctx)
}

func (s *Session) flush(ctx context.Context) ([]ir.OperationResult, error) {
	start := time.Now()

	results := s.queue.Flush()
	if len(results) == 0 {
		return results, nil
	}
	s.doc = apply.ApplyAll(s.doc, results)
	s.dropStaleCursors()

	kinds := make(map[string]int)
	var persistErr error
	for _, r := range results {
		seq := s.seq.Next()
		s.pushUndo(r)
		if ir.IsNoop(r.Operation) {
			kinds[metrics.NoopKind]++
		} else {
			kinds[r.Operation.Kind().String()]++
		}

		if s.store == nil || persistErr != nil {
			continue
		}
		if _, err := s.store.WriteResult(ctx, s.id, seq, r); err != nil {
			persistErr = fmt.Errorf("persist result seq %d: %w", seq, err)
		}
	}

	report := s.queue.LastReport()
	s.metrics.ObserveFlush(metrics.Flush{
		Kinds:      kinds,
		Groups:     report.Groups,
		Concurrent: report.Concurrent,
		Cancelled:  report.Cancelled,
		Duration:   time.Since(start),
	})
	s.metrics.SetPending(0)

	s.logger.Debug("flushed",
		"results", len(results),
		"cancelled", report.Cancelled,
		"seq", s.seq.Current(),
	)
	if persistErr != nil {
		s.logger.Error("persist failed", "error", persistErr)
	}
	return results, persistErr
}

// Autosave flushes, drops history older than the retention window and
// writes a snapshot when a store is configured.
func (s *Session) Autosave(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.flush(ctx); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	s.metrics.ObserveCleanup(s.queue.Cleanup(0))
	cutoff := s.now.Now() - s.queue.Retention()
	maps.DeleteFunc(s.delivered, func(_ string, ts int64) bool { return ts < cutoff })

	if s.store == nil {
		return nil
	}
	seq := s.seq.Current()
	if err := s.store.WriteSnapshot(ctx, s.id, seq, s.doc); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	s.logger.Info("snapshot saved", "seq", seq, "elements", len(s.doc))
	return nil
}

// Run autosaves on a ticker until ctx is cancelled, then saves once more
// with a context that ignores the cancellation. Tick failures are logged
// and do not stop the loop; the final save's error is returned.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.autosave)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.Autosave(context.WithoutCancel(ctx))
		case <-ticker.C:
			if err := s.Autosave(ctx); err != nil {
				s.logger.Warn("autosave failed", "error", err)
			}
		}
	}
}

// Restore rebuilds docID from its latest snapshot plus the results stored
// after it, applied one by one in seq order. It returns the document and
// the last seq seen. An unknown document restores as empty at seq 0.
func Restore(ctx context.Context, r HistoryReader, docID string) (ir.Document, int64, error) {
	snap, ok, err := r.LatestSnapshot(ctx, docID)
	if err != nil {
		return nil, 0, fmt.Errorf("restore %s: %w", docID, err)
	}
	doc := ir.Document{}
	var seq int64
	if ok {
		doc = snap.Document.Clone()
		seq = snap.Seq
	}

	results, err := r.ReadResults(ctx, docID, seq)
	if err != nil {
		return nil, 0, fmt.Errorf("restore %s: %w", docID, err)
	}
	for _, sr := range results {
		doc = apply.ApplyOne(doc, sr.Result.Operation)
		seq = sr.Seq
	}
	return doc, seq, nil
}

// markDelivered records r's content ID and reports whether it was new. A
// result whose ID cannot be computed is always treated as new.
func (s *Session) markDelivered(r ir.OperationResult) bool {
	id, err := ir.ResultID(r)
	if err != nil {
		s.logger.Warn("result id unavailable", "error", err)
		return true
	}
	if _, ok := s.delivered[id]; ok {
		return false
	}
	s.delivered[id] = r.Timestamp
	return true
}

func (s *Session) enqueue(r ir.OperationResult) {
	s.queue.Enqueue(r)
	s.metrics.SetPending(s.queue.Len())
}

// stamp returns the next timestamp for userID: the time source's reading,
// bumped past the user's previous stamp when the source has not moved.
func (s *Session) stamp(userID string) int64 {
	ts := s.now.Now()
	if last, ok := s.lastTS[userID]; ok && ts <= last {
		ts = last + 1
	}
	s.lastTS[userID] = ts
	return ts
}

func (s *Session) pushUndo(r ir.OperationResult) {
	key := resultKey{user: r.UserID, ts: r.Timestamp}
	if s.undoing.Contains(key) {
		s.undoing.Remove(key)
		return
	}
	if ir.IsNoop(r.Operation) || ir.IsNoop(r.Inverse) {
		return
	}
	s.undo[r.UserID] = append(s.undo[r.UserID], r)
}

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/RafaelSullivam/editor-sub001/internal/engine"
	"github.com/RafaelSullivam/editor-sub001/internal/ir"
	"github.com/RafaelSullivam/editor-sub001/internal/metrics"
	"github.com/RafaelSullivam/editor-sub001/internal/store"
	"github.com/RafaelSullivam/editor-sub001/internal/testutil"
)

func newTestSession(t *testing.T, doc ir.Document, opts ...Option) (*Session, *testutil.ManualTime) {
	t.Helper()
	clock := testutil.NewManualTime(0)
	opts = append([]Option{WithTimeSource(clock), WithID("doc-test")}, opts...)
	return New(doc, opts...), clock
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestNew_GeneratesID(t *testing.T) {
	a := New(nil)
	b := New(nil)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Empty(t, a.Document())
}

func TestNew_CopiesDocument(t *testing.T) {
	doc := ir.NewDocument("A")
	s, _ := newTestSession(t, doc)
	doc[0].ID = "changed"
	assert.Equal(t, []string{"A"}, s.Document().IDs())
}

func TestEdit_MoveDeleteConflict(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestSession(t, ir.NewDocument("A", "B", "C"))

	clock.Set(10)
	s.Edit("u1", ir.Move{ElementID: "B", Position: ir.At(0)})
	clock.Set(40)
	s.Edit("u2", ir.Delete{ElementID: "B", Position: ir.At(1)})
	assert.Equal(t, 2, s.Pending())

	results, err := s.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, ir.IsNoop(results[0].Operation))
	assert.Equal(t, ir.Delete{ElementID: "B", Position: ir.At(1)}, results[1].Operation)
	assert.Equal(t, []string{"A", "C"}, s.Document().IDs())
	assert.Equal(t, int64(2), s.Seq())
	assert.Equal(t, 1, s.LastReport().Cancelled)
	assert.Zero(t, s.Pending())
}

func TestEdit_StampsStrictlyIncreasingPerUser(t *testing.T) {
	s, clock := newTestSession(t, ir.NewDocument("A"))
	clock.Set(100)

	r1 := s.Edit("u1", ir.Modify{ElementID: "A", Value: ir.Object{"x": ir.Int(1)}})
	r2 := s.Edit("u1", ir.Modify{ElementID: "A", Value: ir.Object{"x": ir.Int(2)}})
	r3 := s.Edit("u2", ir.Modify{ElementID: "A", Value: ir.Object{"x": ir.Int(3)}})

	assert.Equal(t, int64(100), r1.Timestamp)
	assert.Equal(t, int64(101), r2.Timestamp)
	assert.Equal(t, int64(100), r3.Timestamp, "other users are unaffected")
}

func TestEdit_InverseUsesOptimisticView(t *testing.T) {
	s, clock := newTestSession(t, ir.NewDocument("A"))

	s.Edit("u1", ir.Insert{Position: ir.At(1), Element: &ir.Element{ID: "X", Props: ir.Object{"w": ir.Int(5)}}})
	clock.Advance(1)
	r := s.Edit("u1", ir.Modify{ElementID: "X", Value: ir.Object{"w": ir.Int(9), "h": ir.Int(2)}})

	assert.Equal(t, ir.Modify{
		ElementID: "X",
		Value:     ir.Object{"w": ir.Int(5), "h": ir.Null{}},
		OldValue:  ir.Object{"w": ir.Int(9), "h": ir.Int(2)},
	}, r.Inverse)
}

func TestSubmit_KeepsTimestampAndDefaultsInverse(t *testing.T) {
	s, clock := newTestSession(t, ir.NewDocument("A"))
	require.True(t, s.Submit(ir.OperationResult{Operation: ir.Delete{ElementID: "A", Position: ir.At(0)}, Timestamp: 500, UserID: "remote"}))

	results, err := s.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(500), results[0].Timestamp)
	assert.True(t, ir.IsNoop(results[0].Inverse))
	assert.Empty(t, s.Document())

	clock.Set(0)
	r := s.Edit("remote", ir.Noop())
	assert.Equal(t, int64(501), r.Timestamp, "local stamps continue after submitted ones")
}

func TestSubmit_RedeliveryAppliesOnce(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	s, _ := newTestSession(t, ir.NewDocument("A", "B"), WithStore(st))

	remote := ir.OperationResult{
		Operation: ir.Insert{Position: ir.At(1), Element: &ir.Element{ID: "X"}},
		Inverse:   ir.Delete{ElementID: "X", Position: ir.At(1)},
		Timestamp: 10,
		UserID:    "remote",
	}
	require.True(t, s.Submit(remote))
	_, err := s.Flush(ctx)
	require.NoError(t, err)

	assert.False(t, s.Submit(remote), "second delivery is dropped")
	results, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)

	assert.Equal(t, []string{"A", "X", "B"}, s.Document().IDs())
	assert.Equal(t, int64(1), s.Seq())

	doc, seq, err := Restore(ctx, st, "doc-test")
	require.NoError(t, err)
	assert.Equal(t, s.Seq(), seq)
	assert.True(t, s.Document().Equal(doc), "restored %v, live %v", doc.IDs(), s.Document().IDs())
}

func TestSubmit_DropsEchoOfOwnEdit(t *testing.T) {
	s, clock := newTestSession(t, ir.NewDocument("A"))
	clock.Set(10)
	r := s.Edit("u1", ir.Delete{ElementID: "A", Position: ir.At(0)})

	assert.False(t, s.Submit(r))
	assert.Equal(t, 1, s.Pending())
}

func TestSubmit_DeliveredIDsExpireWithRetention(t *testing.T) {
	s, clock := newTestSession(t, ir.NewDocument("A"), WithQueueOptions(engine.WithRetention(1000)))
	r := ir.OperationResult{
		Operation: ir.Modify{ElementID: "A", Value: ir.Object{"x": ir.Int(1)}},
		Timestamp: 0,
		UserID:    "remote",
	}
	require.True(t, s.Submit(r))
	require.NoError(t, s.Autosave(context.Background()))
	assert.False(t, s.Submit(r), "still inside the retention window")

	clock.Advance(5000)
	require.NoError(t, s.Autosave(context.Background()))
	assert.True(t, s.Submit(r), "forgotten once older than the retention window")
}

func TestUndo_InsertWithoutIDIsNotUndoable(t *testing.T) {
	s, _ := newTestSession(t, ir.NewDocument("A"))
	s.Edit("u1", ir.Insert{Position: ir.At(1), Element: &ir.Element{Props: ir.Object{"w": ir.Int(1)}}})
	_, err := s.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Document(), 2)

	_, ok := s.Undo("u1")
	assert.False(t, ok)
}

func TestFlush_Empty(t *testing.T) {
	s, _ := newTestSession(t, nil)
	results, err := s.Flush(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, s.Seq())
}

func TestUndo_Insert(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestSession(t, ir.NewDocument("A", "B"))

	s.Edit("u1", ir.Insert{Position: ir.At(1), Element: &ir.Element{ID: "X"}})
	_, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "X", "B"}, s.Document().IDs())

	clock.Advance(1000)
	undo, ok := s.Undo("u1")
	require.True(t, ok)
	assert.Equal(t, ir.Delete{ElementID: "X", Position: ir.At(1)}, undo.Operation)
	_, err = s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, s.Document().IDs())

	_, ok = s.Undo("u1")
	assert.False(t, ok, "undo results are not undoable")
}

func TestUndo_ModifyRestoresAbsentKeys(t *testing.T) {
	ctx := context.Background()
	start := ir.Document{{ID: "A", Props: ir.Object{"size": ir.Int(1)}}}
	s, clock := newTestSession(t, start)

	s.Edit("u1", ir.Modify{ElementID: "A", Value: ir.Object{"size": ir.Int(4), "color": ir.String("red")}})
	_, err := s.Flush(ctx)
	require.NoError(t, err)

	clock.Advance(1000)
	_, ok := s.Undo("u1")
	require.True(t, ok)
	_, err = s.Flush(ctx)
	require.NoError(t, err)

	assert.True(t, start.Equal(s.Document()), "got %v", s.Document())
}

func TestUndo_PerUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestSession(t, ir.NewDocument("A"))

	s.Edit("u1", ir.Insert{Position: ir.At(1), Element: &ir.Element{ID: "X"}})
	clock.Advance(1000)
	s.Edit("u2", ir.Insert{Position: ir.At(2), Element: &ir.Element{ID: "Y"}})
	clock.Advance(1000)
	s.Edit("u1", ir.Insert{Position: ir.At(3), Element: &ir.Element{ID: "Z"}})
	_, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "X", "Y", "Z"}, s.Document().IDs())

	clock.Advance(1000)
	undo, ok := s.Undo("u1")
	require.True(t, ok)
	assert.Equal(t, "Z", undo.Operation.Target())

	_, ok = s.Undo("nobody")
	assert.False(t, ok)
}

func TestUndo_CancelledOperationIsNotUndoable(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestSession(t, ir.NewDocument("A", "B", "C"))

	clock.Set(10)
	s.Edit("u1", ir.Move{ElementID: "B", Position: ir.At(0)})
	clock.Set(40)
	s.Edit("u2", ir.Delete{ElementID: "B", Position: ir.At(1)})
	_, err := s.Flush(ctx)
	require.NoError(t, err)

	_, ok := s.Undo("u1")
	assert.False(t, ok)
	_, ok = s.Undo("u2")
	assert.True(t, ok)
}

func TestFlush_PersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	s, clock := newTestSession(t, ir.NewDocument("A", "B"), WithStore(st))

	s.Edit("u1", ir.Insert{Position: ir.At(1), Element: &ir.Element{ID: "X"}})
	_, err := s.Flush(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Autosave(ctx))

	clock.Advance(1000)
	s.Edit("u2", ir.Modify{ElementID: "A", Value: ir.Object{"color": ir.String("red")}})
	clock.Advance(1000)
	s.Edit("u2", ir.Move{ElementID: "B", Position: ir.At(0)})
	_, err = s.Flush(ctx)
	require.NoError(t, err)

	stored, err := st.ReadResults(ctx, "doc-test", 0)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	doc, seq, err := Restore(ctx, st, "doc-test")
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)
	assert.True(t, s.Document().Equal(doc), "restored %v, live %v", doc, s.Document())

	resumed, err := Load(ctx, st, "doc-test", WithStore(st), WithTimeSource(clock))
	require.NoError(t, err)
	assert.Equal(t, "doc-test", resumed.ID())
	assert.Equal(t, int64(3), resumed.Seq())

	clock.Advance(1000)
	resumed.Edit("u3", ir.Delete{ElementID: "X", Position: ir.At(2)})
	_, err = resumed.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), resumed.Seq())
}

func TestRestore_UnknownDocument(t *testing.T) {
	doc, seq, err := Restore(context.Background(), openStore(t), "missing")
	require.NoError(t, err)
	assert.Empty(t, doc)
	assert.Zero(t, seq)
}

type failingStore struct {
	writes int
}

func (f *failingStore) WriteResult(context.Context, string, int64, ir.OperationResult) (string, error) {
	f.writes++
	return "", errors.New("disk full")
}

func (f *failingStore) WriteSnapshot(context.Context, string, int64, ir.Document) error {
	return errors.New("disk full")
}

func TestFlush_PersistErrorStillAppliesDocument(t *testing.T) {
	fs := &failingStore{}
	s, clock := newTestSession(t, ir.NewDocument("A"), WithStore(fs))

	s.Edit("u1", ir.Delete{ElementID: "A", Position: ir.At(0)})
	clock.Advance(500)
	s.Edit("u1", ir.Insert{Position: ir.At(0), Element: &ir.Element{ID: "B"}})

	_, err := s.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist result seq 1")
	assert.Equal(t, 1, fs.writes, "writing stops at the first failure")
	assert.Equal(t, []string{"B"}, s.Document().IDs())
	assert.Equal(t, int64(2), s.Seq())

	assert.Error(t, s.Autosave(context.Background()))
}

func TestFlush_RecordsMetrics(t *testing.T) {
	rec := metrics.NewRecorder(prometheus.NewRegistry(), "test")
	s, clock := newTestSession(t, ir.NewDocument("A", "B", "C"), WithMetrics(rec))

	clock.Set(10)
	s.Edit("u1", ir.Move{ElementID: "B", Position: ir.At(0)})
	assert.Equal(t, 1.0, promtest.ToFloat64(rec.PendingOps))
	clock.Set(40)
	s.Edit("u2", ir.Delete{ElementID: "B", Position: ir.At(1)})

	_, err := s.Flush(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(rec.Flushes))
	assert.Equal(t, 1.0, promtest.ToFloat64(rec.CancelledOps))
	assert.Equal(t, 2.0, promtest.ToFloat64(rec.ConcurrentOps))
	assert.Equal(t, 1.0, promtest.ToFloat64(rec.ResultsFlushed.WithLabelValues("delete")))
	assert.Equal(t, 1.0, promtest.ToFloat64(rec.ResultsFlushed.WithLabelValues(metrics.NoopKind)))
	assert.Equal(t, 0.0, promtest.ToFloat64(rec.ResultsFlushed.WithLabelValues("modify")),
		"the cancelled move is not counted as a modify")
	assert.Equal(t, 0.0, promtest.ToFloat64(rec.PendingOps))
}

func TestAutosave_CleansUpHistory(t *testing.T) {
	rec := metrics.NewRecorder(prometheus.NewRegistry(), "test")
	s, clock := newTestSession(t, ir.NewDocument("A"),
		WithMetrics(rec),
		WithQueueOptions(engine.WithRetention(1000)),
	)

	s.Edit("u1", ir.Modify{ElementID: "A", Value: ir.Object{"x": ir.Int(1)}})
	_, err := s.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, s.History(), 1)

	clock.Advance(5000)
	require.NoError(t, s.Autosave(context.Background()))
	assert.Empty(t, s.History())
	assert.Equal(t, 1.0, promtest.ToFloat64(rec.HistoryRemovals))
}

func TestRun_FinalSaveOnCancel(t *testing.T) {
	st := openStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, _ := newTestSession(t, ir.NewDocument("A"), WithStore(st), WithAutosaveInterval(time.Hour))
	s.Edit("u1", ir.Insert{Position: ir.At(1), Element: &ir.Element{ID: "B"}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	snap, ok, err := st.LatestSnapshot(context.Background(), "doc-test")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, snap.Document.IDs())
	assert.Equal(t, int64(1), snap.Seq)
}

func TestRun_TicksAutosave(t *testing.T) {
	st := openStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, _ := newTestSession(t, ir.NewDocument("A"), WithStore(st), WithAutosaveInterval(5*time.Millisecond))
	s.Edit("u1", ir.Delete{ElementID: "A", Position: ir.At(0)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok, err := st.LatestSnapshot(context.Background(), "doc-test")
		return err == nil && ok
	}, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, s.Pending())

	cancel()
	require.NoError(t, <-done)
}

func TestSession_ConcurrentEdits(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, _ := newTestSession(t, nil)
	const users = 20

	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("el-%02d", i)
			s.Edit(fmt.Sprintf("user-%02d", i), ir.Insert{Position: ir.At(0), Element: &ir.Element{ID: id}})
		}()
	}
	wg.Wait()

	results, err := s.Flush(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, users)
	assert.Len(t, s.Document(), users)
}

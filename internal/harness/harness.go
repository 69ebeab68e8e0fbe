package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/RafaelSullivam/editor-sub001/internal/engine"
	"github.com/RafaelSullivam/editor-sub001/internal/ir"
	"github.com/RafaelSullivam/editor-sub001/internal/session"
	"github.com/RafaelSullivam/editor-sub001/internal/store"
	"github.com/RafaelSullivam/editor-sub001/internal/testutil"
)

// Harness executes scenarios against one store.
type Harness struct {
	store  *store.Store
	clock  *testutil.ManualTime
	logger *slog.Logger
}

// Run executes a scenario in a fresh in-memory database.
//
// Execution flow:
//  1. Open an in-memory store
//  2. Start a session on the scenario's document, id = scenario name,
//     and snapshot that document at seq 0
//  3. For each step: set the clock to "at", edit or undo, flush if asked
//  4. Flush once more
//  5. Read the persisted trace back and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	return RunWithStore(context.Background(), scenario, st, nil)
}

// RunWithStore executes a scenario against st. Results are written under
// the scenario name, so st should not already hold that document. A nil
// logger discards output. extra options apply before the scenario's own
// tolerance, which therefore wins.
func RunWithStore(ctx context.Context, scenario *Scenario, st *store.Store, logger *slog.Logger, extra ...session.Option) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Harness{
		store:  st,
		clock:  testutil.NewManualTime(0),
		logger: logger,
	}
	return h.run(ctx, scenario, extra)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario, extra []session.Option) (*Result, error) {
	doc, err := scenario.InitialDocument()
	if err != nil {
		return nil, err
	}

	opts := []session.Option{
		session.WithID(scenario.Name),
		session.WithStore(h.store),
		session.WithTimeSource(h.clock),
		session.WithLogger(h.logger),
	}
	opts = append(opts, extra...)
	if scenario.Tolerance != nil {
		opts = append(opts, session.WithQueueOptions(engine.WithTolerance(*scenario.Tolerance)))
	}
	s := session.New(doc, opts...)

	// Seq 0 holds the starting document so replay can rebuild from it.
	if err := h.store.WriteSnapshot(ctx, scenario.Name, 0, doc); err != nil {
		return nil, fmt.Errorf("failed to write initial snapshot: %w", err)
	}

	result := NewResult()
	// Originals by author and stamp, to tell cancellations from no-ops
	// that were submitted as such.
	originals := make(map[stampKey]ir.Operation)

	flush := func() error {
		if _, err := s.Flush(ctx); err != nil {
			return err
		}
		report := s.LastReport()
		result.Groups += report.Groups
		result.Cancelled += report.Cancelled
		return nil
	}

	for i, step := range scenario.Steps {
		h.clock.Set(step.At)

		if step.Undo {
			r, ok := s.Undo(step.User)
			if !ok {
				h.logger.Debug("nothing to undo", "step", i, "user", step.User)
			} else {
				originals[stampKey{r.UserID, r.Timestamp}] = r.Operation
			}
		} else {
			op, err := step.Operation()
			if err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
			r := s.Edit(step.User, op)
			originals[stampKey{r.UserID, r.Timestamp}] = r.Operation
		}

		if step.Flush {
			if err := flush(); err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	stored, err := h.store.ReadResults(ctx, scenario.Name, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, sr := range stored {
		orig := originals[stampKey{sr.Result.UserID, sr.Result.Timestamp}]
		result.Trace = append(result.Trace, TraceEvent{
			Seq:       sr.Seq,
			Timestamp: sr.Result.Timestamp,
			UserID:    sr.Result.UserID,
			Operation: sr.Result.Operation,
			Cancelled: ir.IsNoop(sr.Result.Operation) && !ir.IsNoop(orig),
		})
	}
	result.Document = s.Document()

	for _, a := range scenario.Assertions {
		if err := evaluate(result, a); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

type stampKey struct {
	user string
	ts   int64
}

package session

import (
	"log/slog"
	"time"

	"github.com/RafaelSullivam/editor-sub001/internal/engine"
	"github.com/RafaelSullivam/editor-sub001/internal/metrics"
)

// DefaultAutosaveInterval is how often Run flushes and snapshots.
const DefaultAutosaveInterval = 30 * time.Second

// Option configures a Session.
type Option func(*Session)

// WithID sets the document ID used for storage. Defaults to a fresh UUIDv7.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithStore persists flushed results and autosave snapshots.
func WithStore(st Store) Option {
	return func(s *Session) {
		s.store = st
	}
}

// WithMetrics records flushes on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Session) {
		s.metrics = r
	}
}

// WithTimeSource stamps edits and drives retention. It is passed on to the
// queue.
func WithTimeSource(ts engine.TimeSource) Option {
	return func(s *Session) {
		if ts != nil {
			s.now = ts
		}
	}
}

// WithLogger sets the session logger. It is passed on to the queue.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithQueueOptions forwards options to the underlying engine.Queue. They
// are applied after the session's own time source and logger.
func WithQueueOptions(opts ...engine.Option) Option {
	return func(s *Session) {
		s.queueOpts = append(s.queueOpts, opts...)
	}
}

// WithAutosaveInterval sets the Run ticker period.
func WithAutosaveInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.autosave = d
		}
	}
}

// withStartSeq resumes sequence numbering after restored history.
func withStartSeq(seq int64) Option {
	return func(s *Session) {
		s.seq = engine.NewClockAt(seq)
	}
}

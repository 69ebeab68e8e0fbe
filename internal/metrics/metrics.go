// Package metrics exposes Prometheus collectors for operation flushing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "layoutsync"

// NoopKind labels results cancelled to the no-op sentinel in
// ResultsFlushed.
const NoopKind = "noop"

// Recorder holds the collectors for one process. A nil *Recorder is valid
// and records nothing, so sessions without metrics need no special casing.
type Recorder struct {
	Flushes         prometheus.Counter
	ResultsFlushed  *prometheus.CounterVec
	Groups          prometheus.Counter
	ConcurrentOps   prometheus.Counter
	CancelledOps    prometheus.Counter
	PendingOps      prometheus.Gauge
	FlushDuration   prometheus.Histogram
	HistoryRemovals prometheus.Counter
}

// NewRecorder creates collectors and registers them with reg. An empty
// namespace uses DefaultNamespace. Registering twice against the same
// registry panics, as with promauto.
func NewRecorder(reg prometheus.Registerer, namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	f := promauto.With(reg)

	return &Recorder{
		Flushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Number of queue flushes",
		}),
		// Results by operation kind after transformation, cancelled ones
		// under NoopKind.
		ResultsFlushed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_flushed_total",
			Help:      "Operation results returned by flushes",
		}, []string{"kind"}),
		Groups: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concurrency_groups_total",
			Help:      "Concurrency groups formed by flushes, singletons included",
		}),
		ConcurrentOps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concurrent_operations_total",
			Help:      "Operations that shared a group with at least one other",
		}),
		CancelledOps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancelled_operations_total",
			Help:      "Operations turned into no-ops by a concurrent edit",
		}),
		PendingOps: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_operations",
			Help:      "Operations waiting for the next flush",
		}),
		// Buckets: 100us to ~1.6s
		FlushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time spent flushing, applying and persisting a batch",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		HistoryRemovals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_removed_total",
			Help:      "History entries dropped by retention cleanup",
		}),
	}
}

// Flush describes one completed flush.
type Flush struct {
	Kinds      map[string]int
	Groups     int
	Concurrent int
	Cancelled  int
	Duration   time.Duration
}

// ObserveFlush records one flush.
func (r *Recorder) ObserveFlush(f Flush) {
	if r == nil {
		return
	}
	r.Flushes.Inc()
	for kind, n := range f.Kinds {
		r.ResultsFlushed.WithLabelValues(kind).Add(float64(n))
	}
	r.Groups.Add(float64(f.Groups))
	r.ConcurrentOps.Add(float64(f.Concurrent))
	r.CancelledOps.Add(float64(f.Cancelled))
	r.FlushDuration.Observe(f.Duration.Seconds())
}

// SetPending sets the pending gauge.
func (r *Recorder) SetPending(n int) {
	if r == nil {
		return
	}
	r.PendingOps.Set(float64(n))
}

// ObserveCleanup counts history entries removed by retention.
func (r *Recorder) ObserveCleanup(removed int) {
	if r == nil || removed <= 0 {
		return
	}
	r.HistoryRemovals.Add(float64(removed))
}

// Totals gathers g and sums each family across its label sets. Counters
// and gauges contribute their value, histograms their sample count.
func Totals(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	totals := make(map[string]float64, len(families))
	for _, mf := range families {
		var sum float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				sum += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				sum += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				sum += float64(m.GetHistogram().GetSampleCount())
			}
		}
		totals[mf.GetName()] = sum
	}
	return totals, nil
}

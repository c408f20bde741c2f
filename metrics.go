package vstream

import "github.com/prometheus/client_golang/prometheus"

// engineMetrics holds the engine's optional Prometheus collectors. It is
// nil on an Engine opened without WithMetrics, in which case every method
// on it is a no-op -- callers never need to nil-check at the call site.
type engineMetrics struct {
	streamsCreated  prometheus.Counter
	bytesAppended   prometheus.Counter
	commits         prometheus.Counter
	busyRejections  prometheus.Counter
	integrityErrors prometheus.Counter
	commitLatency   prometheus.Histogram
}

func newEngineMetrics(reg prometheus.Registerer) *engineMetrics {
	if reg == nil {
		return nil
	}
	m := &engineMetrics{
		streamsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vstream", Name: "streams_created_total",
			Help: "Total number of streams created (local and replicated).",
		}),
		bytesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vstream", Name: "bytes_appended_total",
			Help: "Total number of payload bytes committed across all streams.",
		}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vstream", Name: "commits_total",
			Help: "Total number of successful writer commits.",
		}),
		busyRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vstream", Name: "busy_rejections_total",
			Help: "Total number of mutating operations rejected because the stream was locked.",
		}),
		integrityErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vstream", Name: "integrity_errors_total",
			Help: "Total number of slice or replicated-append integrity failures.",
		}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vstream", Name: "commit_latency_seconds",
			Help:    "Latency of writer commit calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.streamsCreated, m.bytesAppended, m.commits,
		m.busyRejections, m.integrityErrors, m.commitLatency,
	)
	return m
}

func (m *engineMetrics) observeStreamCreated() {
	if m == nil {
		return
	}
	m.streamsCreated.Inc()
}

func (m *engineMetrics) observeBusy() {
	if m == nil {
		return
	}
	m.busyRejections.Inc()
}

func (m *engineMetrics) observeIntegrityError() {
	if m == nil {
		return
	}
	m.integrityErrors.Inc()
}

func (m *engineMetrics) observeCommit(bytes uint64, latencySeconds float64) {
	if m == nil {
		return
	}
	m.commits.Inc()
	m.bytesAppended.Add(float64(bytes))
	m.commitLatency.Observe(latencySeconds)
}

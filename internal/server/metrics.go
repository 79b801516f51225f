package server

// This file registers the Prometheus metrics for the HTTP server and the
// retrieval and ingestion hooks wired by the serve command.

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/docchat-go/internal/stream"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// Metrics holds all Prometheus metrics owned by docchat.
// A single instance is created by the serve command so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type Metrics struct {
	// reg is kept for collectors registered after construction.
	reg prometheus.Registerer

	// chatSubmissionsTotal counts POST /api/chat requests, partitioned by
	// outcome: "ok" or "invalid".
	chatSubmissionsTotal *prometheus.CounterVec

	// streamsTotal counts GET /api/stream requests, partitioned by outcome:
	// "completed", "failed", "cancelled", "not_found", or "error".
	streamsTotal *prometheus.CounterVec

	// streamDurationSeconds records the wall-clock duration of each answer
	// stream from open to terminal event.
	streamDurationSeconds *prometheus.HistogramVec

	// chatActiveStreams is the number of SSE answer streams currently open.
	chatActiveStreams prometheus.Gauge

	// streamQueueHighWater records the deepest event queue seen per stream.
	streamQueueHighWater prometheus.Histogram

	// streamDroppedEventsTotal counts callbacks ignored after a stream ended.
	streamDroppedEventsTotal prometheus.Counter

	// retrievalFailuresTotal counts retrieval degradations, partitioned by
	// stage: "embed" or "search".
	retrievalFailuresTotal *prometheus.CounterVec

	// ingestRunsTotal counts ingestion runs, partitioned by outcome.
	ingestRunsTotal *prometheus.CounterVec

	// ingestChunksTotal counts chunks added to the index.
	ingestChunksTotal prometheus.Counter

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// httpRateLimitedTotal counts requests rejected by the rate limiter,
	// partitioned by path.
	httpRateLimitedTotal *prometheus.CounterVec

	// readyProbeSeconds records readiness probe latency per dependency.
	readyProbeSeconds *prometheus.HistogramVec
}

// NewMetrics registers all metrics against reg and returns the populated
// Metrics. promauto.With(reg) is used so that each call registers into the
// provided registry rather than the global default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,

		chatSubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "chat",
			Name:      "submissions_total",
			Help:      "Total number of questions submitted via /api/chat, partitioned by outcome.",
		}, []string{"outcome"}),

		streamsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "chat",
			Name:      "streams_total",
			Help:      "Total number of /api/stream requests, partitioned by outcome.",
		}, []string{"outcome"}),

		streamDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docchat",
			Subsystem: "chat",
			Name:      "stream_duration_seconds",
			Help:      "Wall-clock duration of answer streams from open to terminal event.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		chatActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "docchat",
			Subsystem: "chat",
			Name:      "active_streams",
			Help:      "Number of /api/stream SSE streams currently open.",
		}),

		streamQueueHighWater: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docchat",
			Subsystem: "stream",
			Name:      "queue_high_water",
			Help:      "Deepest unconsumed event queue observed per answer stream.",
			Buckets:   []float64{1, 4, 16, 64, 256, 1024, 4096},
		}),

		streamDroppedEventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "stream",
			Name:      "dropped_events_total",
			Help:      "Total number of generation callbacks ignored after the stream had ended.",
		}),

		retrievalFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "retrieval",
			Name:      "failures_total",
			Help:      "Total number of retrieval failures degraded to empty context, partitioned by stage.",
		}, []string{"stage"}),

		ingestRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "ingestion",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestChunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "ingestion",
			Name:      "chunks_total",
			Help:      "Total number of chunks added to the vector index.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docchat",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		httpRateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected with 429, partitioned by path.",
		}, []string{"path"}),

		readyProbeSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docchat",
			Subsystem: "ready",
			Name:      "probe_duration_seconds",
			Help:      "Latency of /api/ready dependency probes.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5},
		}, []string{"dependency"}),
	}
}

// rateLimited counts one request rejected by the rate limiter.
func (m *Metrics) rateLimited(path string) {
	m.httpRateLimitedTotal.WithLabelValues(path).Inc()
}

// RetrievalFailed counts one retrieval degradation. Its signature matches
// rag.FailureHook.
func (m *Metrics) RetrievalFailed(stage string, _ error) {
	m.retrievalFailuresTotal.WithLabelValues(stage).Inc()
}

// ChunksIngested counts chunks added by the ingestion pipeline.
func (m *Metrics) ChunksIngested(n int) {
	m.ingestChunksTotal.Add(float64(n))
}

// IngestRun counts one ingestion run outside the HTTP API (CLI, watcher).
func (m *Metrics) IngestRun(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ingestRunsTotal.WithLabelValues(outcome).Inc()
}

// trackPending exposes pending as the docchat_conversations_pending gauge.
func (m *Metrics) trackPending(pending func() int) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "docchat",
		Subsystem: "conversations",
		Name:      "pending",
		Help:      "Number of submitted questions whose stream has not been opened.",
	}, func() float64 { return float64(pending()) })
}

// observeStream records the outcome of a finished answer stream.
func (m *Metrics) observeStream(outcome string, d time.Duration, a *stream.Adapter) {
	m.streamsTotal.WithLabelValues(outcome).Inc()
	m.streamDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
	m.streamQueueHighWater.Observe(float64(a.HighWater()))
	m.streamDroppedEventsTotal.Add(float64(a.Dropped()))
}

// instrument wraps h so that every request is counted and timed under the
// logical handler name.
func (m *Metrics) instrument(name string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h(rw, r)
		m.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}

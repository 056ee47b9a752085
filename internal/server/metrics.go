package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/ragdesk/internal/query"
)

const (
	metricsNamespace = "ragdesk"

	// labelHandler partitions HTTP metrics by route pattern rather than the
	// raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New so tests can inject a fresh
// prometheus.Registry.
type serverMetrics struct {
	// uploadRequestsTotal counts /api/upload requests by outcome: "ok",
	// "empty", "too_large", "unsupported", "decode_error", "timeout", "error".
	uploadRequestsTotal *prometheus.CounterVec

	// ingestedChunksTotal counts chunks stored through /api/upload by file type.
	ingestedChunksTotal *prometheus.CounterVec

	// queryRequestsTotal counts /api/query requests by outcome: "ok",
	// "no_documents", "invalid", "timeout", "error".
	queryRequestsTotal *prometheus.CounterVec

	// queryStageSeconds records per-stage latency of successful queries.
	queryStageSeconds *prometheus.HistogramVec

	// queryTokensTotal counts LLM tokens by kind ("prompt", "completion").
	queryTokensTotal *prometheus.CounterVec

	// queryCostUSDTotal accumulates the estimated LLM cost in US dollars.
	queryCostUSDTotal prometheus.Counter

	// indexedVectors is the last observed number of vectors in the index.
	indexedVectors prometheus.Gauge

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, route pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// rateLimitedTotal counts requests rejected with 429, by route class.
	rateLimitedTotal *prometheus.CounterVec

	// authFailuresTotal counts requests rejected with 401, by reason
	// ("missing", "invalid").
	authFailuresTotal *prometheus.CounterVec

	// dependencyUp is 1 when the dependency passed its last readiness probe.
	dependencyUp *prometheus.GaugeVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		uploadRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "upload",
			Name:      "requests_total",
			Help:      "Total number of /api/upload requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestedChunksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "upload",
			Name:      "chunks_total",
			Help:      "Total number of chunks stored through /api/upload, partitioned by file type.",
		}, []string{"file_type"}),

		queryRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of /api/query requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		queryStageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "query",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each query pipeline stage (retrieval, rerank, generation, total).",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),

		queryTokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "query",
			Name:      "tokens_total",
			Help:      "Total number of LLM tokens consumed by queries, partitioned by kind.",
		}, []string{"kind"}),

		queryCostUSDTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "query",
			Name:      "cost_usd_total",
			Help:      "Estimated LLM cost of all queries in US dollars.",
		}),

		indexedVectors: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "index",
			Name:      "vectors",
			Help:      "Number of vectors in the index as of the last /api/stats or /api/clear.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		rateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the per-client rate limiter, partitioned by route class.",
		}, []string{"class"}),

		authFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "auth_failures_total",
			Help:      "Total number of requests rejected for a missing or invalid API key.",
		}, []string{"reason"}),

		dependencyUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "dependency_up",
			Help:      "Whether the dependency passed its last /api/ready probe (1) or not (0).",
		}, []string{"dependency"}),
	}
}

// observeQuery records a successful query result.
func (s *Server) observeQuery(res *query.Result) {
	m := s.metrics
	if !res.Generated {
		m.queryRequestsTotal.WithLabelValues("no_documents").Inc()
		m.queryStageSeconds.WithLabelValues("retrieval").Observe(res.Timings.Retrieval.Seconds())
		m.queryStageSeconds.WithLabelValues("total").Observe(res.Timings.Total.Seconds())
		return
	}
	m.queryRequestsTotal.WithLabelValues("ok").Inc()
	m.queryStageSeconds.WithLabelValues("retrieval").Observe(res.Timings.Retrieval.Seconds())
	m.queryStageSeconds.WithLabelValues("rerank").Observe(res.Timings.Rerank.Seconds())
	m.queryStageSeconds.WithLabelValues("generation").Observe(res.Timings.Generation.Seconds())
	m.queryStageSeconds.WithLabelValues("total").Observe(res.Timings.Total.Seconds())
	m.queryTokensTotal.WithLabelValues("prompt").Add(float64(res.Usage.PromptTokens))
	m.queryTokensTotal.WithLabelValues("completion").Add(float64(res.Usage.CompletionTokens))
	m.queryCostUSDTotal.Add(res.Cost.TotalCost)
}

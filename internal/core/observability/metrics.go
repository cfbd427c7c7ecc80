// Package observability holds the Prometheus collectors shared by the service.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "route", "status"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	filterMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_mutations_total",
			Help: "Filter store mutations by dimension and outcome.",
		},
		[]string{"dimension", "outcome"},
	)

	filterRecomputeSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filter_recompute_seconds",
			Help:    "Time spent recomputing derived filter state.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		},
	)

	viewportRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewport_recomputes_total",
			Help: "Viewport pass recomputations by outcome (ok, empty, overflow, error, unavailable, cancelled).",
		},
		[]string{"outcome"},
	)

	viewportRawFeatures = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewport_rendered_features",
			Help:    "Rendered features returned by a viewport query before deduplication.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		},
	)

	viewportPasses = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewport_visible_passes",
			Help:    "Distinct passes published after deduplication.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	loaderFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loader_fetches_total",
			Help: "Document fetches by document, source (cache|upstream) and outcome.",
		},
		[]string{"document", "source", "outcome"},
	)

	loaderLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loader_fetch_seconds",
			Help:    "Latency of upstream document fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"document"},
	)

	cacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_cache_ops_total",
			Help: "Redis document cache operations by op and outcome.",
		},
		[]string{"op", "outcome"},
	)

	redisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Latency of Redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"op"},
	)

	refreshEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_events_total",
			Help: "Path refresh events by outcome (applied, duplicate, invalid, error).",
		},
		[]string{"outcome"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of live viewer sessions.",
		},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func ObserveFilterMutation(dimension string, err error) {
	filterMutations.WithLabelValues(dimension, outcome(err)).Inc()
}

func ObserveFilterRecompute(d time.Duration) {
	filterRecomputeSeconds.Observe(d.Seconds())
}

// ObserveViewport records one aggregator recomputation.
func ObserveViewport(result string, rawFeatures, passes int) {
	viewportRecomputes.WithLabelValues(result).Inc()
	if result == "error" || result == "cancelled" {
		return
	}
	viewportRawFeatures.Observe(float64(rawFeatures))
	viewportPasses.Observe(float64(passes))
}

func ObserveFetch(document, source string, err error, d time.Duration) {
	loaderFetches.WithLabelValues(document, source, outcome(err)).Inc()
	if source == "upstream" {
		loaderLatencySeconds.WithLabelValues(document).Observe(d.Seconds())
	}
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOps.WithLabelValues(op, outcome(err)).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func IncRefreshEvent(result string) {
	refreshEvents.WithLabelValues(result).Inc()
}

func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Package observability holds the engine's Prometheus collectors. Call Init
// once with the registry the binary exposes; observation helpers are cheap
// no-ops for export purposes until then.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	computationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_computations_total",
			Help: "Profile computations by final state.",
		},
		[]string{"outcome"},
	)

	computationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profile_computation_duration_seconds",
			Help:    "End-to-end profile computation time.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"outcome"},
	)

	stageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profile_stage_duration_seconds",
			Help:    "Per-stage computation time (topo, geology, structure, drillhole).",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"stage"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_cache_results_total",
			Help: "Cache lookups by outcome (hit, miss, wait).",
		},
		[]string{"outcome"},
	)

	softErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "profile_soft_errors_total",
			Help: "Skipped features and rows that degraded a result without failing it.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "route", "status"},
	)
)

// Init registers every collector with the given registry.
func Init(reg prometheus.Registerer) {
	reg.MustRegister(
		computationsTotal,
		computationSeconds,
		stageSeconds,
		cacheResults,
		softErrors,
		httpRequestsTotal,
		httpRequestSeconds,
	)
}

func ObserveComputation(outcome string, seconds float64) {
	computationsTotal.WithLabelValues(outcome).Inc()
	computationSeconds.WithLabelValues(outcome).Observe(seconds)
}

func ObserveStage(stage string, seconds float64) {
	stageSeconds.WithLabelValues(stage).Observe(seconds)
}

func IncCacheHit()  { cacheResults.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheResults.WithLabelValues("miss").Inc() }

// IncCacheWait counts callers that joined an in-flight computation instead
// of starting their own.
func IncCacheWait() { cacheResults.WithLabelValues("wait").Inc() }

func AddSoftErrors(n int) {
	if n > 0 {
		softErrors.Add(float64(n))
	}
}

func ObserveHTTP(method, route string, status int, seconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestSeconds.WithLabelValues(method, route, st).Observe(seconds)
}

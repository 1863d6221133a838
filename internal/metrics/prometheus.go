package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulseboard_table_cache_hits_total",
		Help: "Table loads served from the cache.",
	}, []string{"table"})
	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulseboard_table_cache_misses_total",
		Help: "Table loads that went to the row store.",
	}, []string{"table"})
	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulseboard_table_cache_errors_total",
		Help: "Cache store failures, by operation.",
	}, []string{"op"})
	invalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulseboard_table_cache_invalidations_total",
		Help: "Table cache evictions, by trigger.",
	}, []string{"table", "source"})
	sessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulseboard_session_verifications_total",
		Help: "Session verifications by outcome (cached, renewed, rejected, error).",
	}, []string{"outcome"})
	rpcCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulseboard_widget_calls_total",
		Help: "Widget computations by name and outcome.",
	}, []string{"rpc", "outcome"})
	rpcLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulseboard_widget_duration_seconds",
		Help:    "Widget computation latency.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"rpc"})
)

type prometheusObserver struct{}

func NewPrometheusObserver() Observer {
	return prometheusObserver{}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (prometheusObserver) CacheHit(table string)  { cacheHits.WithLabelValues(table).Inc() }
func (prometheusObserver) CacheMiss(table string) { cacheMisses.WithLabelValues(table).Inc() }
func (prometheusObserver) CacheError(op string)   { cacheErrors.WithLabelValues(op).Inc() }

func (prometheusObserver) Invalidated(table, source string) {
	invalidations.WithLabelValues(table, source).Inc()
}

func (prometheusObserver) SessionResolved(outcome string) {
	sessions.WithLabelValues(outcome).Inc()
}

func (prometheusObserver) RPCCompleted(rpc, outcome string, seconds float64) {
	rpcCalls.WithLabelValues(rpc, outcome).Inc()
	rpcLatency.WithLabelValues(rpc).Observe(seconds)
}

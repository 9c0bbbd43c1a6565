// ABOUTME: Prometheus collectors for oracle queries, session cache lookups, and recompute passes.
// ABOUTME: Collectors are package-level and registered on demand by the serving binary.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	VerdictLabel = "verdict"
	ResultLabel  = "result"
	Hit          = "hit"
	Miss         = "miss"
)

var (
	oracleQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conceptgraph_oracle_queries_total",
			Help: "Oracle queries by verdict",
		},
		[]string{VerdictLabel},
	)

	oracleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "conceptgraph_oracle_query_duration_seconds",
			Help:    "Duration of a single oracle query",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conceptgraph_session_cache_total",
			Help: "Session cache lookups by result",
		},
		[]string{ResultLabel},
	)

	recomputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "conceptgraph_recompute_duration_seconds",
			Help:    "Duration of a full abstract value recompute",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var registerOnce sync.Once

// Register adds every collector to r. Only the first call has an effect.
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(oracleQueries)
		r.MustRegister(oracleDuration)
		r.MustRegister(cacheLookups)
		r.MustRegister(recomputeDuration)
	})
}

// ObserveOracleQuery records one oracle query and its verdict.
func ObserveOracleQuery(verdict string, d time.Duration) {
	oracleQueries.WithLabelValues(verdict).Inc()
	oracleDuration.Observe(d.Seconds())
}

// CacheHit counts a session cache hit.
func CacheHit() {
	cacheLookups.WithLabelValues(Hit).Inc()
}

// CacheMiss counts a session cache miss.
func CacheMiss() {
	cacheLookups.WithLabelValues(Miss).Inc()
}

// ObserveRecompute records the duration of one recompute.
func ObserveRecompute(d time.Duration) {
	recomputeDuration.Observe(d.Seconds())
}

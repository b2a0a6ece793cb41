package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the catalog pipeline.
type Metrics struct {
	Registry          *prometheus.Registry
	OffersSeenTotal   prometheus.Counter
	OffersKeptTotal   prometheus.Counter
	DuplicatesTotal   prometheus.Counter
	CacheLookupsTotal *prometheus.CounterVec
	QueryFailures     prometheus.Counter
	QueryDuration     prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	offersSeen := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_offers_seen_total",
			Help: "Total candidate offers received from the fetcher.",
		},
	)
	offersKept := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_offers_kept_total",
			Help: "Total offers kept after filtering and deduplication.",
		},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_duplicates_removed_total",
			Help: "Total offers collapsed into an existing representative.",
		},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_lookups_total",
			Help: "Cache lookups by namespace and outcome.",
		},
		[]string{"namespace", "outcome"},
	)
	queryFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_query_failures_total",
			Help: "Total part queries that failed in the worker.",
		},
	)
	queryDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_query_duration_seconds",
			Help:    "End-to-end processing latency per part query.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(offersSeen, offersKept, duplicates, cacheLookups, queryFailures, queryDuration)

	return &Metrics{
		Registry:          registry,
		OffersSeenTotal:   offersSeen,
		OffersKeptTotal:   offersKept,
		DuplicatesTotal:   duplicates,
		CacheLookupsTotal: cacheLookups,
		QueryFailures:     queryFailures,
		QueryDuration:     queryDuration,
	}
}

// AddOffersSeen records candidate offers entering the pipeline.
func (m *Metrics) AddOffersSeen(n int) {
	if m == nil {
		return
	}
	m.OffersSeenTotal.Add(float64(n))
}

// AddOffersKept records offers surviving the full reduction.
func (m *Metrics) AddOffersKept(n int) {
	if m == nil {
		return
	}
	m.OffersKeptTotal.Add(float64(n))
}

// AddDuplicates records offers merged away by deduplication.
func (m *Metrics) AddDuplicates(n int) {
	if m == nil {
		return
	}
	m.DuplicatesTotal.Add(float64(n))
}

// IncCacheLookup records one cache lookup outcome ("hit" or "miss").
func (m *Metrics) IncCacheLookup(namespace, outcome string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(namespace, outcome).Inc()
}

// IncQueryFailure records a failed part query.
func (m *Metrics) IncQueryFailure() {
	if m == nil {
		return
	}
	m.QueryFailures.Inc()
}

// ObserveQueryDuration records one query's processing latency.
func (m *Metrics) ObserveQueryDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.Observe(d.Seconds())
}

// Package telemetry exports Prometheus metrics for scoring and batch runs.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "industria"

// Cache lookup results
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Metrics holds all industria Prometheus metrics. A nil *Metrics records
// nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	ItemsProcessed  prometheus.Counter
	ItemsLabeled    prometheus.Counter
	ItemErrors      *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	Labels          *prometheus.CounterVec
	ScoringDuration prometheus.Histogram
	BatchSize       prometheus.Histogram
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		ItemsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Total items handled in batch runs, failed ones included",
		}),
		ItemsLabeled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_labeled_total",
			Help:      "Total items that received at least one label",
		}),
		ItemErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_errors_total",
			Help:      "Total item failures by error kind (content, store, internal)",
		}, []string{"kind"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Decision cache lookups by result",
		}, []string{"result"}),
		Labels: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_total",
			Help:      "Labels emitted per industry",
		}, []string{"industry"}),
		ScoringDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_duration_seconds",
			Help:      "Time to score one item against every industry",
			Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of items per fetched batch",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
	}
}

// Handler returns the HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordItem records one processed item
func (m *Metrics) RecordItem(labels []string, scoring time.Duration) {
	if m == nil {
		return
	}
	m.ItemsProcessed.Inc()
	if len(labels) > 0 {
		m.ItemsLabeled.Inc()
	}
	for _, id := range labels {
		m.Labels.WithLabelValues(id).Inc()
	}
	if scoring > 0 {
		m.ScoringDuration.Observe(scoring.Seconds())
	}
}

// RecordError records one failed item
func (m *Metrics) RecordError(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "internal"
	}
	m.ItemErrors.WithLabelValues(kind).Inc()
}

// RecordCacheLookup records a decision cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordBatch records the size of one fetched batch
func (m *Metrics) RecordBatch(size int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(size))
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Indexing Prometheus metrics.
var (
	IndexingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catdex",
			Name:      "indexing_runs_total",
			Help:      "Total number of reindex runs",
		},
		[]string{"status"},
	)

	IndexingProductsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catdex",
			Name:      "indexing_products_total",
			Help:      "Total number of products processed during reindexing",
		},
		[]string{"status"},
	)

	IndexingBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "catdex",
			Name:      "indexing_batch_duration_seconds",
			Help:      "Duration of one transform-and-index batch in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	IndexingRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "catdex",
			Name:      "indexing_run_duration_seconds",
			Help:      "Duration of a full reindex run in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

var indexingMetricsRegistered bool

// RegisterIndexingMetrics registers Prometheus indexing metrics. Must be called once from main.
func RegisterIndexingMetrics() {
	if indexingMetricsRegistered {
		return
	}
	prometheus.MustRegister(IndexingRunsTotal)
	prometheus.MustRegister(IndexingProductsTotal)
	prometheus.MustRegister(IndexingBatchDuration)
	prometheus.MustRegister(IndexingRunDuration)
	indexingMetricsRegistered = true
}

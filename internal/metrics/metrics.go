// Package metrics exposes Prometheus collectors for the MarketPulse
// services. The detection engine itself stays metrics-free; the service
// entrypoints convert run summaries into these collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marketpulse/marketpulse/internal/detector"
)

var (
	// DetectionsTotal counts detected anomalies by symbol, method and type.
	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomaly_detector_detections_total",
			Help: "Total anomalies detected",
		},
		[]string{"symbol", "method", "anomaly_type"},
	)

	// SymbolsProcessed counts per-symbol run outcomes by status.
	SymbolsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomaly_detector_symbols_processed_total",
			Help: "Total symbols processed",
		},
		[]string{"status"},
	)

	// RunDuration observes full detection run durations.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "anomaly_detector_duration_seconds",
			Help:    "Time spent on anomaly detection runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LastRunTimestamp records when the last detection run finished.
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anomaly_detector_last_run_timestamp",
			Help: "Unix timestamp of last detection run",
		},
	)

	// FetchRequests counts market data fetch attempts by symbol and status.
	FetchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "data_fetcher_requests_total",
			Help: "Total fetch requests",
		},
		[]string{"symbol", "status"},
	)

	// RecordsSaved counts price bars written to the store.
	RecordsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "data_fetcher_records_saved_total",
			Help: "Total records saved to database",
		},
	)

	// APIRequests counts read API requests by endpoint and status.
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"endpoint", "status"},
	)
)

// RecordSummary folds one detection run summary into the collectors.
func RecordSummary(s detector.Summary) {
	for key, count := range s.ByLabel {
		DetectionsTotal.
			WithLabelValues(key.Symbol, key.Method, key.AnomalyType).
			Add(float64(count))
	}
	for status, count := range s.ByStatus {
		SymbolsProcessed.WithLabelValues(status).Add(float64(count))
	}
	RunDuration.Observe(s.Duration.Seconds())
	LastRunTimestamp.SetToCurrentTime()
}

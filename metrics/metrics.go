// Package metrics provides Prometheus metrics for the perfusion API:
// HTTP traffic (request totals, latency, in-flight), the per-IP rate
// limiter population, and hospital-directory ingestion (loads by result,
// rows skipped by reason, directory size).
//
// All collectors are registered with the Prometheus default registry
// during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen recently)",
		},
	)

	DirectoryLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hospital_directory_loads_total",
			Help: "Hospital directory load attempts by result",
		},
		[]string{"result"}, // ok, fallback
	)

	DirectoryRowsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hospital_directory_rows_skipped_total",
			Help: "Hospital source rows skipped during ingestion, by reason",
		},
		[]string{"reason"}, // empty, missing_columns, region
	)

	DirectoryHospitals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hospital_directory_hospitals",
			Help: "Hospitals currently served by the directory",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(DirectoryLoadsTotal)
	prometheus.MustRegister(DirectoryRowsSkipped)
	prometheus.MustRegister(DirectoryHospitals)
}

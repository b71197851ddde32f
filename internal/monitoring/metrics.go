// Package monitoring exposes Prometheus metrics for the HTTP server and the
// catalogue pipeline. Every collector is registered with the default registry.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

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

	RateLimiterBuckets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Number of client buckets held by the rate limiter",
		},
	)

	ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmstock_imports_total",
			Help: "Imported files by detected kind and status",
		},
		[]string{"kind", "status"},
	)

	RecomputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pharmstock_recompute_duration_seconds",
			Help:    "Time spent building a catalogue snapshot",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	RecomputeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pharmstock_recompute_errors_total",
			Help: "Failed recomputes",
		},
	)

	CatalogueProducts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pharmstock_catalogue_products",
			Help: "Products in the current snapshot",
		},
	)

	AlertProducts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pharmstock_alert_products",
			Help: "Products per alert level in the current snapshot",
		},
		[]string{"level"},
	)

	PurchaseCost = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pharmstock_purchase_cost",
			Help: "Total suggested purchase cost of the current snapshot",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestTotals,
		HTTPRequestDuration,
		HTTPRequestInFlight,
		RateLimiterBuckets,
		ImportsTotal,
		RecomputeDuration,
		RecomputeErrors,
		CatalogueProducts,
		AlertProducts,
		PurchaseCost,
	)
}

// ObserveImport counts one imported file.
func ObserveImport(o domain.ImportOutcome) {
	ImportsTotal.WithLabelValues(string(o.Kind), string(o.Status)).Inc()
}

// ObserveSummary publishes the gauges of a freshly committed snapshot.
func ObserveSummary(s domain.DashboardSummary) {
	CatalogueProducts.Set(float64(s.Products))
	PurchaseCost.Set(s.PurchaseCost)
	AlertProducts.Reset()
	for _, a := range s.Alerts {
		AlertProducts.WithLabelValues(string(a.Level)).Set(float64(a.Count))
	}
}

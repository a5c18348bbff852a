// Package metrics defines the Prometheus metric collectors used by the
// lookup server and the loader, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the application.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	LookupsTotal         *prometheus.CounterVec
	LookupNamesReturned  prometheus.Histogram
	StatesPublished      prometheus.Counter
	StatesFailed         prometheus.Counter
	NamesTruncated       *prometheus.CounterVec
	LoaderRunDuration    prometheus.Histogram
	LoaderLastRun        prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being served.",
			},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "name_lookups_total",
				Help: "Total bucket lookups by result (ok, empty, invalid, error).",
			},
			[]string{"result"},
		),
		LookupNamesReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "name_lookup_results_count",
				Help:    "Number of names returned per lookup.",
				Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000},
			},
		),
		StatesPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "loader_states_published_total",
				Help: "Total state records published by loader runs.",
			},
		),
		StatesFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "loader_states_failed_total",
				Help: "Total states that failed to load or publish.",
			},
		),
		NamesTruncated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loader_names_truncated_total",
				Help: "Ranked names dropped per state because every bucket was full.",
			},
			[]string{"state"},
		),
		LoaderRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "loader_run_duration_seconds",
				Help:    "Wall clock duration of complete loader runs.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
		),
		LoaderLastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "loader_last_run_timestamp_seconds",
				Help: "Unix timestamp of the last completed loader run.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.LookupsTotal,
		m.LookupNamesReturned,
		m.StatesPublished,
		m.StatesFailed,
		m.NamesTruncated,
		m.LoaderRunDuration,
		m.LoaderLastRun,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

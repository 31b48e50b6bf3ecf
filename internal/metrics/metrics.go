package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ingestion counters. A nil *Metrics is valid and records
// nothing, so components can run without a registry.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	extracted *prometheus.CounterVec
	loaded    *prometheus.CounterVec
	runs      *prometheus.CounterVec
	lastRun   *prometheus.GaugeVec
}

// New registers the ingestion metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recallwatch",
		Name:      "api_requests_total",
		Help:      "Upstream API requests by api and outcome",
	}, []string{"api", "outcome"})
	m.extracted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recallwatch",
		Name:      "records_extracted_total",
		Help:      "Raw records returned by the fetchers",
	}, []string{"category"})
	m.loaded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recallwatch",
		Name:      "rows_upserted_total",
		Help:      "Rows written to the raw layer",
	}, []string{"table"})
	m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recallwatch",
		Name:      "runs_total",
		Help:      "Pipeline runs by final status",
	}, []string{"status"})
	m.lastRun = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "recallwatch",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished, by status",
	}, []string{"status"})

	m.registry.MustRegister(m.requests, m.extracted, m.loaded, m.runs, m.lastRun)
	return m
}

func (m *Metrics) ObserveRequest(api, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(api, outcome).Inc()
}

func (m *Metrics) AddExtracted(category string, n int) {
	if m == nil {
		return
	}
	m.extracted.WithLabelValues(category).Add(float64(n))
}

func (m *Metrics) AddLoaded(table string, n int) {
	if m == nil {
		return
	}
	m.loaded.WithLabelValues(table).Add(float64(n))
}

func (m *Metrics) ObserveRun(status string, finishedUnix float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.lastRun.WithLabelValues(status).Set(finishedUnix)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Package metrics holds the Prometheus collectors for the vault. A nil
// *Metrics is valid and records nothing, so components can run without it.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	indexRefreshes  *prometheus.CounterVec
	indexEntries    prometheus.Gauge
	lookups         *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prv",
			Name:      "backend_requests_total",
			Help:      "Backend calls by action and outcome.",
		}, []string{"action", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "prv",
			Name:      "backend_request_duration_seconds",
			Help:      "Backend call latency by action.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
		}, []string{"action"}),
		indexRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prv",
			Name:      "index_refresh_total",
			Help:      "Index freshness checks by status.",
		}, []string{"status"}),
		indexEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "prv",
			Name:      "index_entries",
			Help:      "Entries in the published product index.",
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prv",
			Name:      "lookups_total",
			Help:      "Query resolutions and row fetches by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.backendRequests,
		m.backendLatency,
		m.indexRefreshes,
		m.indexEntries,
		m.lookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) BackendRequest(action string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.backendRequests.WithLabelValues(action, outcome).Inc()
	m.backendLatency.WithLabelValues(action).Observe(took.Seconds())
}

func (m *Metrics) IndexRefresh(status string) {
	if m == nil {
		return
	}
	m.indexRefreshes.WithLabelValues(status).Inc()
}

func (m *Metrics) SetIndexEntries(n int) {
	if m == nil {
		return
	}
	m.indexEntries.Set(float64(n))
}

func (m *Metrics) Lookup(outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(outcome).Inc()
}

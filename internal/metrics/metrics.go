// Package metrics exposes Prometheus collectors for HTTP traffic and calendar sync.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/and161185/syncdo/internal/calsync"
)

const namespace = "syncdo"

// Metrics holds the service collectors on a dedicated registry.
type Metrics struct {
	reg          *prometheus.Registry
	syncTotal    *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ calsync.Observer = (*Metrics)(nil)

// New registers all collectors, plus Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		syncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar_sync",
			Name:      "operations_total",
			Help:      "Calendar reconciliations by lifecycle operation and outcome.",
		}, []string{"op", "outcome"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "calendar_sync",
			Name:      "duration_seconds",
			Help:      "Calendar reconciliation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	m.reg.MustRegister(
		m.syncTotal, m.syncDuration, m.httpTotal, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveSync records one calendar reconciliation.
func (m *Metrics) ObserveSync(op calsync.Op, outcome calsync.Outcome, d time.Duration) {
	m.syncTotal.WithLabelValues(string(op), outcome.String()).Inc()
	m.syncDuration.WithLabelValues(string(op)).Observe(d.Seconds())
}

// ObserveHTTP records one served request. route must be a pattern, never a raw path.
func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	m.httpTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

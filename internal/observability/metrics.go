package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for the service. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec
	lifecycleOps    *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	drops           *prometheus.CounterVec
	sessions        prometheus.Gauge
	catalogReloads  *prometheus.CounterVec
}

// NewMetrics registers and returns metrics on the given registerer. A nil
// registerer leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triage_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_http_errors_total",
			Help: "HTTP error responses by domain error code.",
		}, []string{"path", "method", "code"}),
		lifecycleOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_lifecycle_operations_total",
			Help: "Lifecycle operations by name and outcome.",
		}, []string{"op", "outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_notifications_delivered_total",
			Help: "Events written to operator sessions.",
		}, []string{"event_type"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_notifications_dropped_total",
			Help: "Events not delivered to a session, by reason.",
		}, []string{"reason"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triage_sessions_active",
			Help: "Currently registered operator sessions.",
		}),
		catalogReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_catalog_reloads_total",
			Help: "Category catalog reloads by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.requestCount,
			m.requestDuration,
			m.errorCount,
			m.lifecycleOps,
			m.deliveries,
			m.drops,
			m.sessions,
			m.catalogReloads,
		)
	}
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordLifecycle counts one lifecycle operation.
func (m *Metrics) RecordLifecycle(op, outcome string) {
	if m == nil {
		return
	}
	m.lifecycleOps.WithLabelValues(op, outcome).Inc()
}

// RecordDelivery counts one event written to a session.
func (m *Metrics) RecordDelivery(eventType string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(eventType).Inc()
}

// RecordDrop counts one event a session did not receive.
func (m *Metrics) RecordDrop(reason string) {
	if m == nil {
		return
	}
	m.drops.WithLabelValues(reason).Inc()
}

// SessionOpened tracks a registered session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed tracks a deregistered session.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// RecordCatalogReload counts a catalog reload attempt.
func (m *Metrics) RecordCatalogReload(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.catalogReloads.WithLabelValues(outcome).Inc()
}

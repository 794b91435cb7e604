// Package metrics holds the Prometheus collectors for the membership service.
//
// Collectors are registered on an injected registry rather than the global
// default, so tests can build a fresh set each time without "duplicate
// metrics collector registration" panics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/rzn-members/internal/audit"
	"github.com/sakif/rzn-members/internal/model"
)

const namespace = "rzn"

// Metrics holds all collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// OperationsTotal counts membership operations by outcome, where outcome
	// is "ok" or an apperror kind such as "forbidden".
	OperationsTotal *prometheus.CounterVec

	AuditEntriesTotal    *prometheus.CounterVec
	AuditSinkErrorsTotal prometheus.Counter
	ActiveSessions       prometheus.GaugeFunc
}

// New creates and registers all collectors on registry. activeSessions may
// be nil; it backs the active-sessions gauge.
func New(registry *prometheus.Registry, activeSessions func() int) *Metrics {
	if activeSessions == nil {
		activeSessions = func() int { return 0 }
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Membership operations by name and outcome",
			},
			[]string{"operation", "outcome"},
		),
		AuditEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_entries_total",
				Help:      "Committed audit entries by action",
			},
			[]string{"action"},
		),
		AuditSinkErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_sink_errors_total",
				Help:      "Audit entries a mirror sink failed to accept",
			},
		),
		ActiveSessions: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Live login sessions",
			},
			func() float64 { return float64(activeSessions()) },
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OperationsTotal,
		m.AuditEntriesTotal,
		m.AuditSinkErrorsTotal,
		m.ActiveSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordOperation counts one operation outcome. Safe on a nil receiver so
// callers without metrics need no guard.
func (m *Metrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordAuditSinkError is safe on a nil receiver.
func (m *Metrics) RecordAuditSinkError() {
	if m == nil {
		return
	}
	m.AuditSinkErrorsTotal.Inc()
}

// RecordHTTPRequest records one finished request. Safe on a nil receiver.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// AuditSink returns an audit.Sink that counts entries by action.
func (m *Metrics) AuditSink() audit.Sink {
	if m == nil {
		return audit.Discard{}
	}
	return auditCounter{m: m}
}

type auditCounter struct {
	m *Metrics
}

func (a auditCounter) Append(_ context.Context, e model.AuditEntry) error {
	a.m.AuditEntriesTotal.WithLabelValues(e.Action).Inc()
	return nil
}

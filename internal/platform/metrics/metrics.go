// Package metrics exposes Prometheus counters and histograms for the HTTP
// surface, document intake and the assistant gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "telemeds"

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	uploadsTotal        *prometheus.CounterVec
	uploadBytes         *prometheus.HistogramVec
	assistantReplies    *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		uploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intake_uploads_total",
				Help:      "Document intake attempts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		uploadBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "intake_upload_bytes",
				Help:      "Size of accepted uploads in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"kind"},
		),
		assistantReplies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assistant_replies_total",
				Help:      "Assistant replies by source (model, no_answer, fallback)",
			},
			[]string{"source"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.uploadsTotal,
		m.uploadBytes,
		m.assistantReplies,
	)
	return m
}

// RecordHTTPRequest records one served request. route is the registered
// route pattern, not the raw path, to keep cardinality bounded.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpload records an intake attempt. size is only observed for
// accepted uploads.
func (m *Metrics) RecordUpload(kind, outcome string, size int64) {
	m.uploadsTotal.WithLabelValues(kind, outcome).Inc()
	if outcome == "accepted" && size >= 0 {
		m.uploadBytes.WithLabelValues(kind).Observe(float64(size))
	}
}

// RecordAssistantReply records which path produced a chatbot reply.
func (m *Metrics) RecordAssistantReply(source string) {
	m.assistantReplies.WithLabelValues(source).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

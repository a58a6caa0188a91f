// Package metrics exposes Prometheus collectors for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "virtus"

type Metrics struct {
	registry *prometheus.Registry

	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	Virtues          *prometheus.CounterVec
	Signups          *prometheus.CounterVec
	Approvals        *prometheus.CounterVec
	UsageBlocks      prometheus.Counter
	WebSocketClients prometheus.Gauge
	PushSent         *prometheus.CounterVec
	Backups          *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Virtues: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "virtues_recorded_total",
			Help:      "Virtue records appended, by type.",
		}, []string{"type"}),
		Signups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Signup submissions by invite kind and result.",
		}, []string{"kind", "result"}),
		Approvals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signup_reviews_total",
			Help:      "Pending signup reviews by decision and outcome.",
		}, []string{"decision", "outcome"}),
		UsageBlocks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_blocks_total",
			Help:      "Members who exhausted their daily allowance.",
		}),
		WebSocketClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}),
		PushSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_notifications_total",
			Help:      "Web push deliveries by result.",
		}, []string{"result"}),
		Backups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "State snapshot uploads by result.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

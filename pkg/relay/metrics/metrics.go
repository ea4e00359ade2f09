// Package metrics holds the relay's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	registry *prometheus.Registry

	// Chat metrics
	ChatRequestsTotal  *prometheus.CounterVec
	ChatFallbacksTotal prometheus.Counter
	ChatDuration       *prometheus.HistogramVec

	// Provider metrics
	ProviderHealthy *prometheus.GaugeVec

	// Session metrics
	SessionsCreatedTotal prometheus.Counter
	SessionsReapedTotal  prometheus.Counter

	// Websocket metrics
	WSMessagesTotal    *prometheus.CounterVec
	WSConnectionsTotal prometheus.Counter
}

// New creates a Metrics instance on a private registry. sessionCount, when
// non-nil, backs the active-sessions gauge.
func New(namespace string, sessionCount func() int) *Metrics {
	if namespace == "" {
		namespace = "voicerelay"
	}

	registry := prometheus.NewRegistry()

	chatRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Total chat requests by serving provider and outcome",
		},
		[]string{"provider", "status"},
	)

	chatFallbacksTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_fallbacks_total",
			Help:      "Chats served by a provider other than the requested one",
		},
	)

	chatDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_duration_seconds",
			Help:      "Chat round-trip duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	providerHealthy := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_healthy",
			Help:      "Provider health flag (1 healthy, 0 unhealthy)",
		},
		[]string{"provider"},
	)

	sessionsCreatedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total sessions created",
		},
	)

	sessionsReapedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Sessions removed by the idle reaper",
		},
	)

	wsMessagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Inbound websocket messages by type",
		},
		[]string{"type"},
	)

	wsConnectionsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_connections_total",
			Help:      "Total websocket connections accepted",
		},
	)

	registry.MustRegister(
		chatRequestsTotal,
		chatFallbacksTotal,
		chatDuration,
		providerHealthy,
		sessionsCreatedTotal,
		sessionsReapedTotal,
		wsMessagesTotal,
		wsConnectionsTotal,
	)

	if sessionCount != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of live sessions",
			},
			func() float64 { return float64(sessionCount()) },
		))
	}

	return &Metrics{
		registry:             registry,
		ChatRequestsTotal:    chatRequestsTotal,
		ChatFallbacksTotal:   chatFallbacksTotal,
		ChatDuration:         chatDuration,
		ProviderHealthy:      providerHealthy,
		SessionsCreatedTotal: sessionsCreatedTotal,
		SessionsReapedTotal:  sessionsReapedTotal,
		WSMessagesTotal:      wsMessagesTotal,
		WSConnectionsTotal:   wsConnectionsTotal,
	}
}

// SetProviderHealth records one provider's health flag.
func (m *Metrics) SetProviderHealth(provider string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.ProviderHealthy.WithLabelValues(provider).Set(v)
}

// Handler serves the metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

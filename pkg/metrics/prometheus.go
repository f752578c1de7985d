// Package metrics defines the Prometheus collectors for the realtime layer.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the realtime service
type Metrics struct {
	// Connection metrics
	wsConnectionsActive prometheus.Gauge
	wsConnectionsTotal  *prometheus.CounterVec
	wsEventsTotal       *prometheus.CounterVec

	// Messaging metrics
	messagesRoutedTotal *prometheus.CounterVec
	messageErrorsTotal  *prometheus.CounterVec

	// Call signaling metrics
	callsTotal       *prometheus.CounterVec
	callsActive      prometheus.Gauge
	callErrorsTotal  *prometheus.CounterVec

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		wsConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "ws_connections_active",
				Help:        "Number of currently registered WebSocket connections",
				ConstLabels: labels,
			},
		),
		wsConnectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "ws_connections_total",
				Help:        "Total WebSocket connection attempts by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"}, // accepted, rejected
		),
		wsEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "ws_events_total",
				Help:        "Total WebSocket events processed by name and direction",
				ConstLabels: labels,
			},
			[]string{"event", "direction"}, // inbound, outbound
		),
		messagesRoutedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "chat_messages_routed_total",
				Help:        "Total chat messages routed by delivery outcome",
				ConstLabels: labels,
			},
			[]string{"delivery"}, // delivered, stored_only
		),
		messageErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "chat_message_errors_total",
				Help:        "Total chat message failures by error code",
				ConstLabels: labels,
			},
			[]string{"code"},
		),
		callsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "calls_total",
				Help:        "Total call lifecycle transitions",
				ConstLabels: labels,
			},
			[]string{"transition"}, // requested, accepted, ended, timed_out
		),
		callsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "calls_active",
				Help:        "Number of call sessions currently held in memory",
				ConstLabels: labels,
			},
		),
		callErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "call_errors_total",
				Help:        "Total call signaling failures by error code",
				ConstLabels: labels,
			},
			[]string{"code"},
		),
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total HTTP requests by method, path, and status",
				ConstLabels: labels,
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being served",
				ConstLabels: labels,
			},
		),
	}
}

// Connection metrics

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.wsConnectionsActive.Inc()
	m.wsConnectionsTotal.WithLabelValues("accepted").Inc()
}

func (m *Metrics) ConnectionRejected() {
	if m == nil {
		return
	}
	m.wsConnectionsTotal.WithLabelValues("rejected").Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.wsConnectionsActive.Dec()
}

// RecordEvent records a processed WebSocket event.
// Direction is "inbound" or "outbound".
func (m *Metrics) RecordEvent(event, direction string) {
	if m == nil {
		return
	}
	m.wsEventsTotal.WithLabelValues(event, direction).Inc()
}

// Messaging metrics

// RecordMessageRouted records a persisted message; delivered reports whether
// the receiver had a live connection.
func (m *Metrics) RecordMessageRouted(delivered bool) {
	if m == nil {
		return
	}
	if delivered {
		m.messagesRoutedTotal.WithLabelValues("delivered").Inc()
		return
	}
	m.messagesRoutedTotal.WithLabelValues("stored_only").Inc()
}

func (m *Metrics) RecordMessageError(code string) {
	if m == nil {
		return
	}
	m.messageErrorsTotal.WithLabelValues(code).Inc()
}

// Call metrics

func (m *Metrics) RecordCallTransition(transition string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(transition).Inc()
}

func (m *Metrics) SetActiveCalls(count int) {
	if m == nil {
		return
	}
	m.callsActive.Set(float64(count))
}

// HTTP metrics

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Inc()
}

func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Dec()
}

func (m *Metrics) RecordCallError(code string) {
	if m == nil {
		return
	}
	m.callErrorsTotal.WithLabelValues(code).Inc()
}

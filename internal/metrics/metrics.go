package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_websocket_connections",
			Help: "Live websocket connections on this instance",
		},
	)

	// Event fan-out metrics
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_events_delivered_total",
			Help: "Events written to a local connection buffer",
		},
		[]string{"event", "source"}, // source: "local" or "remote"
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_events_dropped_total",
			Help: "Events dropped for a connection",
		},
		[]string{"reason"},
	)

	BroadcastPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_broadcast_publish_failures_total",
			Help: "Failed publishes to the cross-instance broadcast channel",
		},
	)

	// Business metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_messages_sent_total",
			Help: "Total messages persisted",
		},
	)

	AckOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_acks_total",
			Help: "Delivery and read acknowledgements by outcome",
		},
		[]string{"kind", "outcome"}, // outcome: "applied", "duplicate", "error"
	)

	CallTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_call_transitions_total",
			Help: "Call state transitions",
		},
		[]string{"status"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)

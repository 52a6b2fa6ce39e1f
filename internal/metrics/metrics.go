package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wirechat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Session metrics
	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wirechat_live_connections",
			Help: "Currently registered connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wirechat_online_users",
			Help: "Identities with at least one live connection",
		},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_auth_failures_total",
			Help: "Connection attempts rejected as unauthorized",
		},
	)

	// Event metrics
	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_inbound_events_total",
			Help: "Inbound client events by type",
		},
		[]string{"type"},
	)

	ErrorEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_error_events_total",
			Help: "Error events sent to originators by code",
		},
		[]string{"code"},
	)

	DroppedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_dropped_events_total",
			Help: "Outbound events dropped because a connection queue was full",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_rate_limit_hits_total",
			Help: "Inbound events rejected by the per-connection limiter",
		},
	)

	// Business metrics
	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_messages_relayed_total",
			Help: "Persisted and delivered messages",
		},
		[]string{"scope"}, // "direct" or "group"
	)

	ActiveCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wirechat_active_calls",
			Help: "Call records currently held in memory",
		},
	)

	CallTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_call_transitions_total",
			Help: "Call state transitions",
		},
		[]string{"modality", "transition"}, // initiate, answer, decline, end, disconnect
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wirechat_store_latency_seconds",
			Help:    "Durable store call latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .5},
		},
		[]string{"op"},
	)
)

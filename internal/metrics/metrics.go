// Package metrics holds the bridge's Prometheus collectors. They register
// with the default registry on import and are served by promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "telemetry_bridge"

// Source Metrics
var (
	// MessagesReceived tracks broker messages by topic kind (sensor, actuator).
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_received_total",
			Help:      "Broker messages received by topic kind",
		},
		[]string{"kind"},
	)

	// MessagesDropped tracks broker messages that could not be applied.
	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_dropped_total",
			Help:      "Broker messages dropped by topic kind and reason",
		},
		[]string{"kind", "reason"},
	)

	// SimulatorTicks tracks simulated reading steps.
	SimulatorTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulator_ticks_total",
			Help:      "Simulated sensor readings produced",
		},
	)

	// SourceMode is 1 for the active source mode label and 0 for the other.
	SourceMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_mode",
			Help:      "Active telemetry source (broker or simulator)",
		},
		[]string{"mode"},
	)
)

// State Metrics
var (
	// StateUpdates tracks applied state mutations by event name.
	StateUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_updates_total",
			Help:      "Shared state mutations by resulting event",
		},
		[]string{"event"},
	)
)

// Command Metrics
var (
	// Commands tracks actuator commands by requested state and delivery path.
	Commands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_commands_total",
			Help:      "Actuator commands by requested state and delivery path",
		},
		[]string{"state", "path"},
	)

	// CommandPublishErrors tracks failed broker publishes of commands.
	CommandPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_command_publish_errors_total",
			Help:      "Actuator commands that failed to publish to the broker",
		},
	)
)

// WebSocket Metrics
var (
	// WebSocketClients tracks currently connected push clients.
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients_current",
			Help:      "Currently connected websocket clients",
		},
	)

	// BroadcastsTotal tracks events fanned out by event name.
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Events broadcast to websocket clients by event name",
		},
		[]string{"event"},
	)

	// BroadcastDropped tracks per-client sends skipped because the buffer was full.
	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Per-client event sends dropped due to a full buffer",
		},
	)
)

// HTTP Metrics
var (
	// HTTPRequestsTotal tracks API requests by method, route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks API latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)
)

// Source mode labels.
const (
	ModeBroker    = "broker"
	ModeSimulator = "simulator"
)

// SetSourceMode flips the SourceMode gauge to the given mode.
func SetSourceMode(mode string) {
	for _, m := range []string{ModeBroker, ModeSimulator} {
		v := 0.0
		if m == mode {
			v = 1
		}
		SourceMode.WithLabelValues(m).Set(v)
	}
}

// BoolLabel renders a boolean as the "on"/"off" label value.
func BoolLabel(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/telemetry-bridge/internal/metrics"
)

// Topic kinds used in logs and metric labels.
const (
	kindSensor   = "sensor"
	kindActuator = "actuator"
	kindUnknown  = "unknown"
)

// Drop reasons used in metric labels.
const (
	reasonUnparseable = "unparseable"
	reasonNonFinite   = "non_finite"
	reasonUnknown     = "unknown_topic"
)

// MQTTClient is the subset of the MQTT client the bridge needs.
// *mqtt.Client satisfies it; tests use a mock.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// BridgeTopics names the subscribed broker topics. Wildcard filters are allowed.
type BridgeTopics struct {
	// Sensor carries temperature/humidity readings.
	Sensor string

	// ActuatorState carries the actuator's reported state.
	ActuatorState string
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Client is the connected MQTT client. Required.
	Client MQTTClient

	// State receives parsed readings. Required.
	State *State

	// Topics to subscribe to. Both are required.
	Topics BridgeTopics

	// QoS for the subscriptions.
	QoS byte

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge is the broker-driven source: it turns sensor and actuator-state
// messages into state updates. Unparseable messages are logged and dropped.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	client MQTTClient
	state  *State
	topics BridgeTopics
	qos    byte
	logger Logger

	mu         sync.Mutex
	subscribed []string
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Client == nil {
		return nil, ErrClientRequired
	}
	if opts.State == nil {
		return nil, ErrStateRequired
	}
	if opts.Topics.Sensor == "" || opts.Topics.ActuatorState == "" {
		return nil, fmt.Errorf("%w: sensor and actuator-state topics", ErrTopicRequired)
	}

	return &Bridge{
		client: opts.Client,
		state:  opts.State,
		topics: opts.Topics,
		qos:    opts.QoS,
		logger: orNop(opts.Logger),
	}, nil
}

// Start subscribes to the sensor and actuator-state topics. An error means
// the bridge is not receiving and the caller should fall back to the
// simulator; any subscription already made is undone.
func (b *Bridge) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, topic := range []string{b.topics.Sensor, b.topics.ActuatorState} {
		if err := b.client.Subscribe(topic, b.qos, b.HandleMessage); err != nil {
			b.Stop()
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}

		b.mu.Lock()
		b.subscribed = append(b.subscribed, topic)
		b.mu.Unlock()

		b.logger.Info("subscribed", "topic", topic)
	}

	b.logger.Info("bridge started",
		"sensor_topic", b.topics.Sensor,
		"actuator_state_topic", b.topics.ActuatorState,
	)
	return nil
}

// Stop unsubscribes from every topic Start subscribed to.
func (b *Bridge) Stop() {
	b.mu.Lock()
	topics := b.subscribed
	b.subscribed = nil
	b.mu.Unlock()

	for _, topic := range topics {
		if err := b.client.Unsubscribe(topic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
			b.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
		}
	}
}

// HandleMessage applies one broker message to the state. It never returns
// an error for bad payloads: they are logged, counted and dropped so the
// subscription keeps running.
func (b *Bridge) HandleMessage(topic string, payload []byte) error {
	switch {
	case mqtt.MatchTopic(b.topics.Sensor, topic):
		b.handleSensor(topic, payload)
	case mqtt.MatchTopic(b.topics.ActuatorState, topic):
		b.handleActuator(topic, payload)
	default:
		metrics.MessagesDropped.WithLabelValues(kindUnknown, reasonUnknown).Inc()
		b.logger.Warn("dropping message on unexpected topic", "topic", topic, "error", ErrUnknownTopic)
	}
	return nil
}

func (b *Bridge) handleSensor(topic string, payload []byte) {
	metrics.MessagesReceived.WithLabelValues(kindSensor).Inc()

	patch, err := ParseSensor(payload)
	if err != nil {
		b.drop(kindSensor, topic, payload, err)
		return
	}

	snap, _ := b.state.Update(patch)
	b.logger.Debug("sensor reading applied",
		"topic", topic,
		"temperature", Round2(snap.Temperature),
		"humidity", Round2(snap.Humidity),
	)
}

func (b *Bridge) handleActuator(topic string, payload []byte) {
	metrics.MessagesReceived.WithLabelValues(kindActuator).Inc()

	on, err := ParseActuator(payload)
	if err != nil {
		b.drop(kindActuator, topic, payload, err)
		return
	}

	b.state.Update(Patch{ActuatorOn: &on})
	b.logger.Debug("actuator state applied", "topic", topic, "actuator_on", on)
}

func (b *Bridge) drop(kind, topic string, payload []byte, err error) {
	reason := reasonUnparseable
	if errors.Is(err, ErrNonFinite) {
		reason = reasonNonFinite
	}
	metrics.MessagesDropped.WithLabelValues(kind, reason).Inc()

	b.logger.Warn("dropping unparseable message",
		"kind", kind,
		"topic", topic,
		"payload", truncate(payload, maxLoggedPayload),
		"error", err,
	)
}

// maxLoggedPayload bounds how much of a bad payload is logged.
const maxLoggedPayload = 128

func truncate(payload []byte, n int) string {
	if len(payload) <= n {
		return string(payload)
	}
	return string(payload[:n]) + "..."
}

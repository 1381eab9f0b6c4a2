package telemetry

import (
	"context"
	"errors"
	"sync"

	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/mqtt"
)

// notification is one captured Notify call.
type notification struct {
	event Event
	snap  Snapshot
}

// recordingNotifier captures every Notify call in order.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (n *recordingNotifier) Notify(event Event, snap Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{event: event, snap: snap})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification, len(n.calls))
	copy(out, n.calls)
	return out
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// mockMQTTClient implements MQTTClient for testing.
type mockMQTTClient struct {
	mu            sync.Mutex
	handlers      map[string]mqtt.MessageHandler
	unsubscribed  []string
	failSubscribe map[string]error
	connected     bool
}

func newMockMQTTClient() *mockMQTTClient {
	return &mockMQTTClient{
		handlers:      make(map[string]mqtt.MessageHandler),
		failSubscribe: make(map[string]error),
		connected:     true,
	}
}

func (m *mockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failSubscribe[topic]; err != nil {
		return err
	}
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *mockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// deliver simulates the broker delivering a message on a subscribed filter.
func (m *mockMQTTClient) deliver(filter, topic, payload string) error {
	m.mu.Lock()
	handler := m.handlers[filter]
	m.mu.Unlock()
	if handler == nil {
		return errors.New("no handler for " + filter)
	}
	return handler(topic, []byte(payload))
}

// publishedMessage is one captured Publish call.
type publishedMessage struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

// mockPublisher implements Publisher for testing.
type mockPublisher struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	published  []publishedMessage
}

func (p *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.published = append(p.published, publishedMessage{topic, string(payload), qos, retained})
	return nil
}

func (p *mockPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// mockRecorder implements CommandRecorder for testing.
type mockRecorder struct {
	mu      sync.Mutex
	records []CommandRecord
	err     error
}

func (r *mockRecorder) RecordCommand(_ context.Context, rec CommandRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

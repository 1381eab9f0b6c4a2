package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/config"
	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/telemetry-bridge/internal/metrics"
	"github.com/nerrad567/telemetry-bridge/internal/telemetry"
)

// dialWS starts an httptest server for env and connects one websocket client.
func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(env.srv.buildRouter())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	waitForClients(t, env.srv.hub, 1)
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func TestWebSocket_SensorEventEnvelope(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	conn := dialWS(t, env)

	env.state.Update(telemetry.Patch{Temperature: telemetry.Float(26.5)})

	msg := readMessage(t, conn)
	if msg.Type != WSTypeEvent || msg.Event != string(telemetry.EventSensor) {
		t.Fatalf("message = %+v, want sensor_update event", msg)
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", msg.Timestamp, err)
	}

	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %T, want object", msg.Payload)
	}
	if payload["temperature"] != 26.5 || payload["humidity"] != 55.0 {
		t.Errorf("payload = %v", payload)
	}
	if _, ok := payload["actuatorOn"]; !ok {
		t.Error("sensor payload missing actuatorOn")
	}
	if payload["lastUpdate"] == nil {
		t.Error("sensor payload lastUpdate = null after update")
	}
}

func TestWebSocket_ActuatorCommandPushed(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	conn := dialWS(t, env)

	env.do(t, "POST", "/api/actuator/on")

	msg := readMessage(t, conn)
	if msg.Event != string(telemetry.EventActuator) {
		t.Fatalf("event = %q, want actuator_update", msg.Event)
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %T, want object", msg.Payload)
	}
	if payload["actuatorOn"] != true {
		t.Errorf("actuatorOn = %v, want true", payload["actuatorOn"])
	}
	if _, ok := payload["temperature"]; ok {
		t.Error("actuator payload carries temperature")
	}
}

func TestWebSocket_BrokerCommandPushesRequestedValue(t *testing.T) {
	env := newTestEnv(t, testOptions{publisher: &stubPublisher{connected: true}})
	conn := dialWS(t, env)

	env.do(t, "POST", "/api/actuator/on")

	msg := readMessage(t, conn)
	payload, ok := msg.Payload.(map[string]any)
	if !ok || msg.Event != string(telemetry.EventActuator) || payload["actuatorOn"] != true {
		t.Errorf("message = %+v, want actuator_update with requested value", msg)
	}
	if env.state.Snapshot().ActuatorOn {
		t.Error("state mutated on broker path")
	}
}

func TestWebSocket_OrderMatchesMutations(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	conn := dialWS(t, env)

	temps := []float64{20, 21, 22, 23, 24, 25}
	for _, v := range temps {
		env.state.Update(telemetry.Patch{Temperature: telemetry.Float(v)})
	}

	for i, want := range temps {
		msg := readMessage(t, conn)
		payload, ok := msg.Payload.(map[string]any)
		if !ok {
			t.Fatalf("message %d payload = %T", i, msg.Payload)
		}
		if payload["temperature"] != want {
			t.Errorf("message %d temperature = %v, want %v", i, payload["temperature"], want)
		}
	}
}

func TestWebSocket_EveryClientReceives(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	ts := httptest.NewServer(env.srv.buildRouter())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	var conns []*websocket.Conn
	for range 3 {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		defer conn.Close()
		conns = append(conns, conn)
	}
	waitForClients(t, env.srv.hub, 3)

	env.state.Update(telemetry.Patch{Humidity: telemetry.Float(70)})

	for i, conn := range conns {
		if msg := readMessage(t, conn); msg.Event != string(telemetry.EventSensor) {
			t.Errorf("client %d event = %q", i, msg.Event)
		}
	}
}

func TestWebSocket_PingPong(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	conn := dialWS(t, env)

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("message = %+v, want pong p1", msg)
	}
}

func TestWebSocket_UnknownMessageType(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	conn := dialWS(t, env)

	if err := conn.WriteJSON(WSMessage{Type: "subscribe", ID: "s1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != WSTypeError || msg.ID != "s1" {
		t.Errorf("message = %+v, want error for s1", msg)
	}
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	conn := dialWS(t, env)

	conn.Close()
	waitForClients(t, env.srv.hub, 0)

	// Notifying with no clients must not block or panic.
	env.state.Update(telemetry.Patch{Temperature: telemetry.Float(30)})
}

func TestHub_NotifyDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Discard())
	slow := &WSClient{hub: hub, send: make(chan []byte, 1)}
	fast := &WSClient{hub: hub, send: make(chan []byte, 4)}
	hub.Register(slow)
	hub.Register(fast)
	defer hub.Unregister(slow)
	defer hub.Unregister(fast)

	before := testutil.ToFloat64(metrics.BroadcastDropped)

	snap := telemetry.Snapshot{Temperature: 22, Humidity: 50}
	hub.Notify(telemetry.EventSensor, snap)
	hub.Notify(telemetry.EventSensor, snap)

	if got := testutil.ToFloat64(metrics.BroadcastDropped) - before; got != 1 {
		t.Errorf("BroadcastDropped delta = %v, want 1", got)
	}
	if len(slow.send) != 1 || len(fast.send) != 2 {
		t.Errorf("buffered = slow %d fast %d, want 1 and 2", len(slow.send), len(fast.send))
	}
}

func TestHub_RunClosesClientsOnCancel(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Discard())
	client := &WSClient{hub: hub, send: make(chan []byte, 1)}
	hub.Register(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("client send channel still open")
	}

	// A late unregister from the read pump is a no-op.
	hub.Unregister(client)
	if client.trySend([]byte("x")) {
		t.Error("trySend() on closed client = true, want false")
	}
}

func TestNewHub_Defaults(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, nil)

	if hub.cfg.PingInterval != defaultPingInterval || hub.cfg.PongTimeout != defaultPongTimeout {
		t.Errorf("cfg = %+v, want ping/pong defaults", hub.cfg)
	}
	if hub.cfg.MaxMessageSize != defaultMaxMessageSize {
		t.Errorf("MaxMessageSize = %d, want %d", hub.cfg.MaxMessageSize, defaultMaxMessageSize)
	}
}

package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "telemetry-bridge-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			MaxDelay: 5,
		},
		Topics: config.MQTTTopicsConfig{
			Sensor:          "sensors/dht",
			ActuatorState:   "sensors/led/state",
			ActuatorCommand: "sensors/led/cmd",
			Status:          "telemetry-bridge/status",
		},
	}
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "bridge"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg, "bridge-1234")

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "bridge-1234" {
		t.Errorf("ClientID = %q, want bridge-1234", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want bridge/secret", opts.Username, opts.Password)
	}
	if opts.ConnectRetry {
		t.Error("ConnectRetry = true, want false so connect failures surface immediately")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if !opts.Order {
		t.Error("Order = false, want ordered delivery")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg, "bridge")

	if got := opts.Servers[0].String(); got != "ssl://127.0.0.1:8883" {
		t.Errorf("broker URL = %q, want ssl://127.0.0.1:8883", got)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLSConfig not set with minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig(), "bridge-1")
	configureLWT(opts, "telemetry-bridge/status", "bridge-1")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != "telemetry-bridge/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will retained=%v qos=%d, want retained qos 1", opts.WillRetained, opts.WillQos)
	}

	var payload map[string]string
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload["status"] != "offline" || payload["reason"] != "unexpected_disconnect" {
		t.Errorf("will payload = %v", payload)
	}
}

func TestConfigureLWT_NoStatusTopic(t *testing.T) {
	opts := buildClientOptions(testConfig(), "bridge-1")
	configureLWT(opts, "", "bridge-1")

	if opts.WillEnabled {
		t.Error("WillEnabled = true, want false without a status topic")
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantStatus string
	}{
		{"online", buildOnlinePayload("c1"), "online"},
		{"offline", buildOfflinePayload("c1"), "offline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m map[string]string
			if err := json.Unmarshal([]byte(tt.payload), &m); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if m["status"] != tt.wantStatus || m["client_id"] != "c1" {
				t.Errorf("payload = %v", m)
			}
			if _, err := time.Parse(time.RFC3339, m["timestamp"]); err != nil {
				t.Errorf("timestamp %q is not RFC3339", m["timestamp"])
			}
		})
	}
}

func TestUniqueClientID(t *testing.T) {
	a := uniqueClientID("bridge")
	b := uniqueClientID("bridge")

	if !strings.HasPrefix(a, "bridge-") {
		t.Errorf("uniqueClientID() = %q, want bridge- prefix", a)
	}
	if len(a) != len("bridge-")+clientIDSuffixLen {
		t.Errorf("len(uniqueClientID()) = %d", len(a))
	}
	if a == b {
		t.Error("two client IDs are identical")
	}
	if got := uniqueClientID(""); !strings.HasPrefix(got, "telemetry-bridge-") {
		t.Errorf("uniqueClientID(\"\") = %q, want default base", got)
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	c := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 0, ErrInvalidTopic},
		{"wildcard topic", "sensors/+", []byte("x"), 0, ErrInvalidTopic},
		{"invalid qos", "sensors/led/cmd", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "sensors/led/cmd", make([]byte, maxPayloadSize+1), 0, ErrPayloadTooLarge},
		{"not connected", "sensors/led/cmd", []byte("ON"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 0, noop, ErrInvalidTopic},
		{"malformed wildcard", "sensors/#/dht", 0, noop, ErrInvalidTopic},
		{"invalid qos", "sensors/dht", 5, noop, ErrInvalidQoS},
		{"nil handler", "sensors/dht", 1, nil, ErrNilHandler},
		{"not connected", "sensors/dht", 1, noop, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0 after failed subscribes", c.SubscriptionCount())
	}
}

func TestUnsubscribe_NotConnected(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Unsubscribe("sensors/dht"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_NilClient(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true on unconnected client")
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(t.Context()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Handler Dispatch Tests
// =============================================================================

func TestDispatch_RecoversPanic(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error {
		panic("boom")
	}, "sensors/dht", []byte("x"))

	if len(logger.errors) != 1 {
		t.Fatalf("logged %d errors, want 1", len(logger.errors))
	}
	if !strings.Contains(logger.errors[0], "panic") {
		t.Errorf("error log = %q, want panic mention", logger.errors[0])
	}
}

func TestDispatch_LogsHandlerError(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error {
		return errors.New("bad payload")
	}, "sensors/dht", []byte("x"))

	if len(logger.warns) != 1 {
		t.Errorf("logged %d warnings, want 1", len(logger.warns))
	}
}

func TestDispatch_NoLogger(t *testing.T) {
	c := &Client{}
	called := false

	c.dispatch(func(topic string, payload []byte) error {
		called = true
		if topic != "sensors/dht" || string(payload) != "23,50" {
			t.Errorf("handler got %q %q", topic, payload)
		}
		panic("ignored without logger")
	}, "sensors/dht", []byte("23,50"))

	if !called {
		t.Error("handler was not invoked")
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"sensors/dht", "sensors/dht", true},
		{"sensors/dht", "sensors/dht/raw", false},
		{"sensors/+/state", "sensors/led/state", true},
		{"sensors/+/state", "sensors/led/cmd", false},
		{"sensors/+", "sensors/led/state", false},
		{"sensors/#", "sensors/led/state", true},
		{"sensors/#", "sensors", true},
		{"#", "anything/at/all", true},
		{"other/#", "sensors/dht", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"_"+tt.topic, func(t *testing.T) {
			if got := MatchTopic(tt.filter, tt.topic); got != tt.want {
				t.Errorf("MatchTopic(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{"sensors/dht", false},
		{"sensors/+/state", false},
		{"sensors/#", false},
		{"#", false},
		{"", true},
		{"sensors/#/x", true},
		{"sensors/led#", true},
		{"sensors/l+d", true},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			err := ValidateFilter(tt.filter)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilter(%q) error = %v, wantErr %v", tt.filter, err, tt.wantErr)
			}
		})
	}
}

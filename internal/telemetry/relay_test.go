package telemetry

import (
	"context"
	"errors"
	"testing"
)

func newTestRelay(t *testing.T, pub Publisher) (*Relay, *State, *recordingNotifier, *mockRecorder) {
	t.Helper()
	s, n, _ := newTestState()
	rec := &mockRecorder{}

	r, err := NewRelay(RelayOptions{
		State:        s,
		Publisher:    pub,
		CommandTopic: "sensors/led/cmd",
		QoS:          1,
		Recorder:     rec,
	})
	if err != nil {
		t.Fatalf("NewRelay() error = %v", err)
	}
	return r, s, n, rec
}

func TestNewRelay_Validation(t *testing.T) {
	if _, err := NewRelay(RelayOptions{}); !errors.Is(err, ErrStateRequired) {
		t.Errorf("NewRelay() error = %v, want ErrStateRequired", err)
	}

	s, _, _ := newTestState()
	_, err := NewRelay(RelayOptions{State: s, Publisher: &mockPublisher{connected: true}})
	if !errors.Is(err, ErrTopicRequired) {
		t.Errorf("NewRelay() without command topic error = %v, want ErrTopicRequired", err)
	}
}

func TestRelay_NoBrokerMutatesState(t *testing.T) {
	r, s, n, rec := newTestRelay(t, nil)

	res := r.SetActuator(context.Background(), true)

	if !res.Accepted || res.DeliveredViaBroker {
		t.Errorf("Result = %+v, want accepted, not delivered", res)
	}
	if !s.Snapshot().ActuatorOn {
		t.Error("ActuatorOn = false, want true immediately")
	}

	calls := n.all()
	if len(calls) != 1 {
		t.Fatalf("notifications = %d, want exactly 1", len(calls))
	}
	if calls[0].event != EventActuator || !calls[0].snap.ActuatorOn {
		t.Errorf("notification = %+v, want actuator_update on", calls[0])
	}
	if !calls[0].snap.HasUpdate() {
		t.Error("pushed snapshot has no lastUpdate")
	}

	if len(rec.records) != 1 || rec.records[0].Path != PathLocal {
		t.Errorf("records = %+v, want one local record", rec.records)
	}
}

func TestRelay_DisconnectedBrokerFallsBack(t *testing.T) {
	pub := &mockPublisher{connected: false}
	r, s, _, _ := newTestRelay(t, pub)

	res := r.SetActuator(context.Background(), true)

	if res.DeliveredViaBroker {
		t.Error("DeliveredViaBroker = true with disconnected broker")
	}
	if len(pub.published) != 0 {
		t.Errorf("published = %v, want nothing", pub.published)
	}
	if !s.Snapshot().ActuatorOn {
		t.Error("state not mutated on fallback path")
	}
}

func TestRelay_BrokerPublishesWithoutMutating(t *testing.T) {
	pub := &mockPublisher{connected: true}
	r, s, n, rec := newTestRelay(t, pub)
	before := s.Snapshot()

	res := r.SetActuator(context.Background(), true)

	if !res.Accepted || !res.DeliveredViaBroker {
		t.Errorf("Result = %+v, want accepted and delivered", res)
	}
	if s.Snapshot() != before {
		t.Errorf("state changed by broker-path command: %+v", s.Snapshot())
	}

	if len(pub.published) != 1 {
		t.Fatalf("published = %d messages, want 1", len(pub.published))
	}
	msg := pub.published[0]
	if msg.topic != "sensors/led/cmd" || msg.payload != CommandOn || msg.qos != 1 || msg.retained {
		t.Errorf("published = %+v", msg)
	}

	calls := n.all()
	if len(calls) != 1 || calls[0].event != EventActuator || !calls[0].snap.ActuatorOn {
		t.Errorf("notifications = %+v, want one actuator_update with requested value", calls)
	}
	if !calls[0].snap.LastUpdate.Equal(before.LastUpdate) {
		t.Error("pushed lastUpdate differs from current state")
	}

	if len(rec.records) != 1 || rec.records[0].Path != PathBroker || !rec.records[0].DeliveredViaBroker {
		t.Errorf("records = %+v", rec.records)
	}

	// The device's echo on the actuator-state topic is what changes state.
	s.Update(Patch{ActuatorOn: Bool(true)})
	if !s.Snapshot().ActuatorOn {
		t.Error("echo did not apply")
	}
}

func TestRelay_OffPayload(t *testing.T) {
	pub := &mockPublisher{connected: true}
	r, _, _, _ := newTestRelay(t, pub)

	r.SetActuator(context.Background(), false)

	if len(pub.published) != 1 || pub.published[0].payload != CommandOff {
		t.Errorf("published = %+v, want OFF", pub.published)
	}
}

func TestRelay_PublishFailureDoesNotMutate(t *testing.T) {
	pub := &mockPublisher{connected: true, publishErr: errors.New("mqtt: publish failed")}
	r, s, n, rec := newTestRelay(t, pub)

	res := r.SetActuator(context.Background(), true)

	if !res.Accepted || res.DeliveredViaBroker {
		t.Errorf("Result = %+v, want accepted, not delivered", res)
	}
	if s.Snapshot().ActuatorOn {
		t.Error("state mutated after publish failure")
	}

	calls := n.all()
	if len(calls) != 1 || !calls[0].snap.ActuatorOn {
		t.Errorf("notifications = %+v, want requested value pushed", calls)
	}

	if len(rec.records) != 1 || rec.records[0].Path != PathBrokerFailed || rec.records[0].Err == nil {
		t.Errorf("records = %+v, want failed broker record", rec.records)
	}
}

func TestRelay_RecorderErrorIsNotSurfaced(t *testing.T) {
	s, _, _ := newTestState()
	r, err := NewRelay(RelayOptions{
		State:    s,
		Recorder: &mockRecorder{err: errors.New("disk full")},
	})
	if err != nil {
		t.Fatalf("NewRelay() error = %v", err)
	}

	if res := r.SetActuator(context.Background(), true); !res.Accepted {
		t.Error("recorder failure rejected the command")
	}
}

func TestRelay_BrokerActive(t *testing.T) {
	tests := []struct {
		name string
		pub  Publisher
		want bool
	}{
		{"nil publisher", nil, false},
		{"disconnected", &mockPublisher{connected: false}, false},
		{"connected", &mockPublisher{connected: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _, _ := newTestRelay(t, tt.pub)
			if got := r.BrokerActive(); got != tt.want {
				t.Errorf("BrokerActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

package telemetry

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/telemetry-bridge/internal/metrics"
)

// Reading limits and defaults.
const (
	MinTemperature = -10.0
	MaxTemperature = 60.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0

	DefaultTemperature = 24.0
	DefaultHumidity    = 55.0
)

// Snapshot is a point-in-time copy of the shared state.
// A zero LastUpdate means no mutation has happened yet.
type Snapshot struct {
	Temperature float64
	Humidity    float64
	ActuatorOn  bool
	LastUpdate  time.Time
}

// HasUpdate reports whether the state has been mutated at least once.
func (s Snapshot) HasUpdate() bool {
	return !s.LastUpdate.IsZero()
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Temperature *float64
	Humidity    *float64
	ActuatorOn  *bool
}

// IsEmpty reports whether the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p.Temperature == nil && p.Humidity == nil && p.ActuatorOn == nil
}

// touchesSensor reports whether the patch carries a sensor reading.
func (p Patch) touchesSensor() bool {
	return p.Temperature != nil || p.Humidity != nil
}

// Notifier receives every state mutation, and every PushActuator, in the
// order they happened.
//
// Notify is called with the state lock held: it must not block and must
// not call back into State.
type Notifier interface {
	Notify(event Event, snap Snapshot)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(event Event, snap Snapshot)

// Notify calls f(event, snap).
func (f NotifierFunc) Notify(event Event, snap Snapshot) { f(event, snap) }

// State is the single owned record of sensor and actuator values.
//
// Thread Safety: All methods are safe for concurrent use. Mutations are
// serialised; readers always see a complete snapshot.
type State struct {
	mu       sync.RWMutex
	snap     Snapshot
	clock    clockwork.Clock
	notifier Notifier
}

// NewState creates a State holding the defaults (24.0 °C, 55.0 %, actuator
// off, no last update). A nil clock uses the real clock; a nil notifier
// discards events.
func NewState(clock clockwork.Clock, notifier Notifier) *State {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Event, Snapshot) {})
	}
	return &State{
		snap: Snapshot{
			Temperature: DefaultTemperature,
			Humidity:    DefaultHumidity,
		},
		clock:    clock,
		notifier: notifier,
	}
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Update applies p, clamps sensor values into range, advances LastUpdate
// and notifies exactly once. Non-finite values are ignored. It returns the
// resulting snapshot and whether anything was applied; an empty patch is a
// no-op and does not notify.
func (s *State) Update(p Patch) (Snapshot, bool) {
	p = dropNonFinite(p)
	if p.IsEmpty() {
		return s.Snapshot(), false
	}

	event := EventActuator
	if p.touchesSensor() {
		event = EventSensor
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Temperature != nil {
		s.snap.Temperature = clamp(*p.Temperature, MinTemperature, MaxTemperature)
	}
	if p.Humidity != nil {
		s.snap.Humidity = clamp(*p.Humidity, MinHumidity, MaxHumidity)
	}
	if p.ActuatorOn != nil {
		s.snap.ActuatorOn = *p.ActuatorOn
	}

	now := s.clock.Now()
	if now.Before(s.snap.LastUpdate) {
		now = s.snap.LastUpdate
	}
	s.snap.LastUpdate = now

	snap := s.snap
	s.notifier.Notify(event, snap)
	metrics.StateUpdates.WithLabelValues(string(event)).Inc()

	return snap, true
}

// PushActuator notifies an actuator_update carrying on, without mutating
// State or advancing LastUpdate. The notification is issued under the
// write lock so it is ordered with respect to Update.
func (s *State) PushActuator(on bool) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snap
	snap.ActuatorOn = on
	s.notifier.Notify(EventActuator, snap)
	return snap
}

// dropNonFinite clears NaN and ±Inf readings from p.
func dropNonFinite(p Patch) Patch {
	if p.Temperature != nil && !isFinite(*p.Temperature) {
		p.Temperature = nil
	}
	if p.Humidity != nil && !isFinite(*p.Humidity) {
		p.Humidity = nil
	}
	return p
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Float returns a pointer to v, for building patches.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v, for building patches.
func Bool(v bool) *bool { return &v }

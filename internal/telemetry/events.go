package telemetry

import (
	"math"
	"time"
)

// Event names pushed to observers.
type Event string

const (
	// EventSensor carries the full snapshot after a sensor reading.
	EventSensor Event = "sensor_update"

	// EventActuator carries actuator state after an actuator change or command.
	EventActuator Event = "actuator_update"
)

// SensorPayload is the body of a sensor_update event and of GET /api/data.
type SensorPayload struct {
	Temperature float64  `json:"temperature"`
	Humidity    float64  `json:"humidity"`
	ActuatorOn  bool     `json:"actuatorOn"`
	LastUpdate  *float64 `json:"lastUpdate"`
}

// ActuatorPayload is the body of an actuator_update event.
type ActuatorPayload struct {
	ActuatorOn bool     `json:"actuatorOn"`
	LastUpdate *float64 `json:"lastUpdate"`
}

// SensorPayload renders s for the wire: readings rounded to two decimals,
// LastUpdate as Unix seconds or null.
func (s Snapshot) SensorPayload() SensorPayload {
	return SensorPayload{
		Temperature: Round2(s.Temperature),
		Humidity:    Round2(s.Humidity),
		ActuatorOn:  s.ActuatorOn,
		LastUpdate:  UnixSeconds(s.LastUpdate),
	}
}

// ActuatorPayload renders the actuator part of s for the wire.
func (s Snapshot) ActuatorPayload() ActuatorPayload {
	return ActuatorPayload{
		ActuatorOn: s.ActuatorOn,
		LastUpdate: UnixSeconds(s.LastUpdate),
	}
}

// Payload returns the wire body for event.
func (s Snapshot) Payload(event Event) any {
	if event == EventActuator {
		return s.ActuatorPayload()
	}
	return s.SensorPayload()
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// UnixSeconds returns t as fractional Unix seconds, or nil for the zero time.
func UnixSeconds(t time.Time) *float64 {
	if t.IsZero() {
		return nil
	}
	secs := float64(t.UnixNano()) / float64(time.Second)
	return &secs
}

// Package telemetry is the core of the bridge: the shared sensor/actuator
// state and everything that reads or mutates it.
//
// # Components
//
//   - State: the single owned record of temperature, humidity, actuator
//     state and last-update time. Every mutation is serialised and produces
//     exactly one Notify call.
//   - Simulator: a fallback source that random-walks the sensor readings.
//   - Bridge: a broker-driven source that parses sensor and actuator-state
//     messages into state patches.
//   - Relay: turns actuator commands into broker publishes, or into direct
//     state changes when no broker connection is active.
//   - QueryService: read-only snapshot access for the HTTP API.
//
// # Data Flow
//
//	Simulator | Bridge ──► State.Update ──► Notifier (websocket hub) ──► browsers
//	                          ▲
//	HTTP POST ──► Relay ──────┘ (only when the broker is not connected)
//	              └──► broker command topic ──► device ──► actuator-state topic ──► Bridge
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Notifier implementations
// are called while the state lock is held and must not block or call back
// into State.
package telemetry

package mqtt

import "errors"

// Connection state errors. Connect reports ErrConnectionFailed, after
// which the service falls back to the simulator. The bridge ignores
// ErrNotConnected when unsubscribing on shutdown.
var (
	ErrNotConnected     = errors.New("mqtt: not connected to broker")
	ErrConnectionFailed = errors.New("mqtt: broker connection failed")
	ErrTimeout          = errors.New("mqtt: broker did not acknowledge in time")
)

// Operation errors wrap the underlying paho token error.
var (
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
)

// Argument errors are returned before anything is sent to the broker.
var (
	// ErrInvalidTopic covers empty topics, wildcards in publish topics and
	// malformed subscription filters.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrInvalidQoS means a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: QoS must be 0, 1 or 2")

	// ErrPayloadTooLarge means a publish payload above maxPayloadSize.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	// ErrNilHandler means Subscribe was called without a message handler.
	ErrNilHandler = errors.New("mqtt: nil message handler")
)

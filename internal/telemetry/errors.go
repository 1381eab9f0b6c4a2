package telemetry

import "errors"

// Domain-specific errors for the telemetry core.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrStateRequired is returned when a component is built without a State.
	ErrStateRequired = errors.New("telemetry: state is required")

	// ErrClientRequired is returned when a Bridge is built without an MQTT client.
	ErrClientRequired = errors.New("telemetry: mqtt client is required")

	// ErrTopicRequired is returned when a required topic is empty.
	ErrTopicRequired = errors.New("telemetry: topic is required")

	// ErrUnrecognisedPayload is returned by parsers when no parser in the
	// chain accepts a payload.
	ErrUnrecognisedPayload = errors.New("telemetry: unrecognised payload")

	// ErrNonFinite is returned when a payload carries NaN or Inf.
	ErrNonFinite = errors.New("telemetry: non-finite value")

	// ErrUnknownTopic is returned for messages on topics the bridge did not subscribe to.
	ErrUnknownTopic = errors.New("telemetry: unknown topic")
)

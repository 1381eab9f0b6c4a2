package telemetry

import (
	"context"
	"fmt"

	"github.com/nerrad567/telemetry-bridge/internal/metrics"
)

// Command payloads published to the actuator-command topic.
const (
	CommandOn  = "ON"
	CommandOff = "OFF"
)

// CommandPath records how a command was handled.
type CommandPath string

const (
	// PathBroker: published to the broker; state follows the device's echo.
	PathBroker CommandPath = "broker"

	// PathBrokerFailed: the broker was connected but the publish failed.
	PathBrokerFailed CommandPath = "broker_failed"

	// PathLocal: no broker connection; state was changed directly.
	PathLocal CommandPath = "local"
)

// Publisher is the optional broker handle used for commands.
// *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// CommandRecord describes one handled command.
type CommandRecord struct {
	ActuatorOn         bool
	DeliveredViaBroker bool
	Path               CommandPath
	Err                error
}

// CommandRecorder persists handled commands. Optional.
type CommandRecorder interface {
	RecordCommand(ctx context.Context, rec CommandRecord) error
}

// Result is the outcome reported to the caller of SetActuator.
type Result struct {
	Accepted           bool
	DeliveredViaBroker bool
}

// RelayOptions holds configuration for creating a Relay.
type RelayOptions struct {
	// State is mutated directly when no broker is connected. Required.
	State *State

	// Publisher is nil when the broker is unavailable.
	Publisher Publisher

	// CommandTopic receives "ON"/"OFF". Required when Publisher is set.
	CommandTopic string

	// QoS for command publishes.
	QoS byte

	// Logger is optional.
	Logger Logger

	// Recorder is optional.
	Recorder CommandRecorder
}

// Relay turns actuator commands into broker publishes when a broker
// connection is active, and into direct state changes otherwise.
type Relay struct {
	state        *State
	publisher    Publisher
	commandTopic string
	qos          byte
	logger       Logger
	recorder     CommandRecorder
}

// NewRelay creates a Relay.
func NewRelay(opts RelayOptions) (*Relay, error) {
	if opts.State == nil {
		return nil, ErrStateRequired
	}
	if opts.Publisher != nil && opts.CommandTopic == "" {
		return nil, fmt.Errorf("%w: actuator command topic", ErrTopicRequired)
	}

	r := &Relay{
		state:        opts.State,
		publisher:    opts.Publisher,
		commandTopic: opts.CommandTopic,
		qos:          opts.QoS,
		logger:       orNop(opts.Logger),
		recorder:     opts.Recorder,
	}
	return r, nil
}

// BrokerActive reports whether commands currently go to the broker.
func (r *Relay) BrokerActive() bool {
	return r.publisher != nil && r.publisher.IsConnected()
}

// SetActuator requests the actuator on or off. It always accepts.
//
// With an active broker it publishes the command and leaves State alone;
// the change arrives later via the actuator-state topic. Observers get an
// actuator_update with the requested value straight away.
//
// Without a broker it updates State, whose notification is the push.
//
// Known inconsistency: if the publish fails the command is reported
// undelivered and State is still left alone, so observers see the
// requested value pushed but it is never applied.
func (r *Relay) SetActuator(ctx context.Context, on bool) Result {
	rec := CommandRecord{ActuatorOn: on}

	if r.BrokerActive() {
		rec.Path = PathBroker
		if err := r.publisher.Publish(r.commandTopic, commandPayload(on), r.qos, false); err != nil {
			rec.Path = PathBrokerFailed
			rec.Err = err
			metrics.CommandPublishErrors.Inc()
			r.logger.Error("actuator command publish failed",
				"topic", r.commandTopic,
				"actuator_on", on,
				"error", err,
			)
		} else {
			rec.DeliveredViaBroker = true
		}
		r.state.PushActuator(on)
	} else {
		rec.Path = PathLocal
		r.state.Update(Patch{ActuatorOn: &on})
	}

	metrics.Commands.WithLabelValues(metrics.BoolLabel(on), string(rec.Path)).Inc()
	r.logger.Info("actuator command handled",
		"actuator_on", on,
		"path", rec.Path,
		"delivered_via_broker", rec.DeliveredViaBroker,
	)
	r.record(ctx, rec)

	return Result{Accepted: true, DeliveredViaBroker: rec.DeliveredViaBroker}
}

func (r *Relay) record(ctx context.Context, rec CommandRecord) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordCommand(ctx, rec); err != nil {
		r.logger.Warn("failed to record actuator command", "error", err)
	}
}

func commandPayload(on bool) []byte {
	if on {
		return []byte(CommandOn)
	}
	return []byte(CommandOff)
}

package commandlog

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/telemetry-bridge/internal/telemetry"
)

// Recorder adapts a Repository to telemetry.CommandRecorder.
type Recorder struct {
	repo  Repository
	clock clockwork.Clock
}

// NewRecorder creates a Recorder. A nil clock uses the real clock.
func NewRecorder(repo Repository, clock clockwork.Clock) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Recorder{repo: repo, clock: clock}
}

// RecordCommand stores rec as a new Command.
func (r *Recorder) RecordCommand(ctx context.Context, rec telemetry.CommandRecord) error {
	cmd := &Command{
		ActuatorOn:         rec.ActuatorOn,
		DeliveredViaBroker: rec.DeliveredViaBroker,
		Source:             sourceFor(rec.Path),
		CreatedAt:          r.clock.Now().UTC(),
	}
	if rec.Err != nil {
		cmd.Error = rec.Err.Error()
	}
	return r.repo.Create(ctx, cmd)
}

func sourceFor(path telemetry.CommandPath) string {
	if path == telemetry.PathLocal {
		return SourceLocal
	}
	return SourceBroker
}

package telemetry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/telemetry-bridge/internal/metrics"
)

// Simulator random-walk bounds and cadence.
const (
	DefaultSimulatorInterval = 2 * time.Second

	temperatureStep = 0.3
	humidityStep    = 1.0
)

// SimulatorOptions holds configuration for creating a Simulator.
type SimulatorOptions struct {
	// State is the shared state to perturb. Required.
	State *State

	// Clock drives the tick schedule. Defaults to the real clock.
	Clock clockwork.Clock

	// Interval between readings. Defaults to DefaultSimulatorInterval.
	Interval time.Duration

	// Rand supplies the deltas. Defaults to a randomly seeded PCG.
	Rand *rand.Rand

	// Logger is optional.
	Logger Logger
}

// Simulator is the fallback source used when no broker is available. It
// nudges temperature by up to ±0.3 and humidity by up to ±1.0 per tick;
// State clamps the results.
type Simulator struct {
	state    *State
	clock    clockwork.Clock
	interval time.Duration
	rng      *rand.Rand
	logger   Logger
}

// NewSimulator creates a Simulator. Call Run to start producing readings.
func NewSimulator(opts SimulatorOptions) (*Simulator, error) {
	if opts.State == nil {
		return nil, ErrStateRequired
	}

	s := &Simulator{
		state:    opts.State,
		clock:    opts.Clock,
		interval: opts.Interval,
		rng:      opts.Rand,
		logger:   orNop(opts.Logger),
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.interval <= 0 {
		s.interval = DefaultSimulatorInterval
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // simulated readings, not security sensitive
	}

	return s, nil
}

// NewSeededRand returns a deterministic PRNG for reproducible simulations.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed)) //nolint:gosec // simulated readings, not security sensitive
}

// Run produces one reading immediately and then one per interval until ctx
// is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	s.logger.Info("simulator started", "interval", s.interval)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.step()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulator stopped")
			return
		case <-ticker.Chan():
			s.step()
		}
	}
}

// step applies one random-walk reading to the state.
func (s *Simulator) step() {
	current := s.state.Snapshot()

	temperature := current.Temperature + s.uniform(temperatureStep)
	humidity := current.Humidity + s.uniform(humidityStep)

	snap, _ := s.state.Update(Patch{
		Temperature: &temperature,
		Humidity:    &humidity,
	})
	metrics.SimulatorTicks.Inc()

	s.logger.Debug("simulated reading",
		"temperature", Round2(snap.Temperature),
		"humidity", Round2(snap.Humidity),
	)
}

// uniform returns a value in [-span, +span).
func (s *Simulator) uniform(span float64) float64 {
	return (s.rng.Float64()*2 - 1) * span
}

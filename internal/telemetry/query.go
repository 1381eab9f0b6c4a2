package telemetry

// QueryService gives read-only access to the shared state.
type QueryService struct {
	state *State
}

// NewQueryService creates a QueryService over state.
func NewQueryService(state *State) *QueryService {
	return &QueryService{state: state}
}

// GetSnapshot returns the current state. It has no side effects and always
// succeeds; before the first mutation it returns the defaults with no
// LastUpdate.
func (q *QueryService) GetSnapshot() Snapshot {
	return q.state.Snapshot()
}

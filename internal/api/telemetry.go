package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/telemetry-bridge/internal/commandlog"
)

// ActuatorResponse is the body returned by the actuator command endpoints.
type ActuatorResponse struct {
	Result             string `json:"result"`
	ActuatorOn         bool   `json:"actuatorOn"`
	DeliveredViaBroker bool   `json:"deliveredViaBroker"`
}

// handleGetData returns the current telemetry snapshot.
func (s *Server) handleGetData(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.query.GetSnapshot().SensorPayload())
}

// handleActuator returns a handler that requests the given actuator state.
// The command is always accepted; whether it reached the broker is reported
// in the response body.
func (s *Server) handleActuator(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := s.relay.SetActuator(r.Context(), on)
		writeJSON(w, http.StatusOK, ActuatorResponse{
			Result:             "ok",
			ActuatorOn:         on,
			DeliveredViaBroker: res.DeliveredViaBroker,
		})
	}
}

// handleListCommands returns a page of the command log, most recent first.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		writeNotFound(w, "command log is disabled")
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}

	result, err := s.commands.List(r.Context(), commandlog.Filter{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("listing commands failed", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

var errNegative = errors.New("negative value")

// queryInt parses an optional non-negative integer query parameter.
// A missing parameter yields zero.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errNegative
	}
	return n, nil
}

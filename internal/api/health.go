package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the dependency checks behind GET /health.
const healthCheckTimeout = 2 * time.Second

// Dependency check results reported by GET /health.
const (
	checkOK       = "ok"
	checkDisabled = "disabled"

	statusOK       = "ok"
	statusDegraded = "degraded"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Source  string            `json:"source"`
	Checks  map[string]string `json:"checks"`
}

// handleHealth runs the broker and command log health checks. Any failing
// check reports the bridge as degraded with 503. Components that are not
// configured report "disabled".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:  statusOK,
		Version: s.version,
		Source:  s.sourceMode,
		Checks: map[string]string{
			"mqtt":     checkDisabled,
			"database": checkDisabled,
		},
	}

	if s.broker != nil {
		resp.Checks["mqtt"] = checkResult(s.broker.HealthCheck(ctx))
	}
	if s.db != nil {
		resp.Checks["database"] = checkResult(s.db.HealthCheck(ctx))
	}

	code := http.StatusOK
	for name, result := range resp.Checks {
		if result != checkOK && result != checkDisabled {
			resp.Status = statusDegraded
			code = http.StatusServiceUnavailable
			s.logger.Warn("health check failed", "component", name, "error", result)
		}
	}

	writeJSON(w, code, resp)
}

func checkResult(err error) string {
	if err != nil {
		return err.Error()
	}
	return checkOK
}

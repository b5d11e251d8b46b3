package webapi

import (
	"context"
	"net/http"
	"time"

	"t2i_backend/backends"
	"t2i_backend/metrics"
)

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status   string             `json:"status"`
	Database string             `json:"database"`
	Backends backends.PoolStats `json:"backends"`
}

// StatusResponse is the body of /API/Status.
type StatusResponse struct {
	System           *metrics.SystemStatus    `json:"system,omitempty"`
	Dispatches       *metrics.DispatchStats   `json:"dispatches,omitempty"`
	Recent           []metrics.DispatchRecord `json:"recent,omitempty"`
	Backends         backends.PoolStats       `json:"backends"`
	ActiveDispatches int64                    `json:"active_dispatches"`
	Sessions         int                      `json:"sessions"`
}

const recentDispatches = 20

// handleHealth reports "ok" when the database answers and at least one
// backend is valid, "degraded" when no backend is valid, and 503 when the
// database is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "disabled", Backends: s.deps.Pool.Stats()}
	status := http.StatusOK

	if s.deps.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Database.Ping(ctx); err != nil {
			resp.Database = "unreachable"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	if status == http.StatusOK && resp.Backends.Valid == 0 {
		resp.Status = "degraded"
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Backends:         s.deps.Pool.Stats(),
		ActiveDispatches: s.deps.Tracker.ActiveCount(),
		Sessions:         s.deps.Sessions.Count(),
	}
	if s.deps.Recorder != nil {
		store := s.deps.Recorder.Store()
		system := store.Status()
		stats := store.Stats()
		resp.System = &system
		resp.Dispatches = &stats
		resp.Recent = store.Recent(recentDispatches)
	}
	writeJSON(w, http.StatusOK, resp)
}

package webapi

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"t2i_backend/backends"
)

// ListResponse wraps list results as {"list": [...]}.
type ListResponse[T any] struct {
	List []T `json:"list"`
}

// ResultResponse is the body of DeleteBackend.
type ResultResponse struct {
	Result string `json:"result"`
}

type backendRequest struct {
	TypeID    string         `json:"type_id"`
	BackendID *int           `json:"backend_id"`
	Settings  map[string]any `json:"settings"`
}

// settings converts loosely typed JSON values to backend settings.
func (b backendRequest) settings() backends.Settings {
	if b.Settings == nil {
		return nil
	}
	out := make(backends.Settings, len(b.Settings))
	for k, v := range b.Settings {
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

func (s *Server) handleListBackendTypes(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[backends.TypeInfo]{List: s.deps.Pool.Types()})
}

func (s *Server) handleListBackends(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[backends.BackendInfo]{List: s.deps.Pool.List()})
}

func (s *Server) handleAddBackend(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	var req backendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := s.deps.Pool.Add(req.TypeID, req.settings())
	switch {
	case errors.Is(err, backends.ErrUnknownType):
		writeError(w, http.StatusOK, "Invalid backend type: "+req.TypeID)
	case err != nil:
		s.logger.Error("Failed to add backend", zap.String("type", req.TypeID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Failed to add backend.")
	default:
		writeJSON(w, http.StatusOK, info)
	}
}

func (s *Server) handleEditBackend(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	var req backendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BackendID == nil {
		writeError(w, http.StatusBadRequest, "Missing backend_id.")
		return
	}
	if req.Settings == nil {
		writeError(w, http.StatusOK, "Missing settings.")
		return
	}

	info, err := s.deps.Pool.Edit(*req.BackendID, req.settings())
	if err != nil {
		writeError(w, http.StatusOK, fmt.Sprintf("Invalid backend ID %d", *req.BackendID))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteBackend(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	var req backendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BackendID == nil {
		writeError(w, http.StatusBadRequest, "Missing backend_id.")
		return
	}

	if s.deps.Pool.Delete(*req.BackendID) {
		writeJSON(w, http.StatusOK, ResultResponse{Result: "Deleted."})
		return
	}
	writeJSON(w, http.StatusOK, ResultResponse{Result: "Already didn't exist."})
}

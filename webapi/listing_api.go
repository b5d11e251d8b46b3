package webapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"t2i_backend/output"
)

type listRequest struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
}

// writeListError maps listing failures to the client messages.
func (s *Server) writeListError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, output.ErrBadPath):
		s.logger.Warn("Rejected listing path", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid path.")
	case errors.Is(err, output.ErrNotFound):
		writeError(w, http.StatusNotFound, "404, path not found.")
	default:
		s.logger.Error("Listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error reading file list.")
	}
}

// handleListImages lists the caller's output tree. It needs a session
// because the tree is per user.
func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	var req listRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, apiErr := s.lookupSession(req.SessionID)
	if apiErr == nil && session == nil {
		apiErr = &apiError{status: http.StatusUnauthorized, message: msgInvalidSession}
	}
	if apiErr != nil {
		writeError(w, apiErr.status, apiErr.message)
		return
	}

	listing, err := output.ListImages(s.config.OutputPath, session.UserID, req.Path)
	if err != nil {
		s.writeListError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	var req listRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	listing, err := output.ListModels(s.config.ModelRoot, req.Path, s.config.AllowedModels)
	if err != nil {
		s.writeListError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

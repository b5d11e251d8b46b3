package webapi

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"t2i_backend/backends"
	"t2i_backend/core"
	"t2i_backend/output"
	"t2i_backend/t2i"
)

// Client-facing messages of the generation routes.
const (
	msgShuttingDown   = "Server is shutting down."
	msgInvalidSession = "Invalid session ID."
	msgOutputUnusable = "Server cannot write images for this session."
)

// apiError is a request failure with the status and message sent back.
type apiError struct {
	status  int
	message string
	err     error
}

func (e *apiError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *apiError) Unwrap() error { return e.err }

// GenerateRequest is the body of both generation routes. Parameter fields
// sit at the top level next to session_id and images.
type GenerateRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Images    int    `json:"images"`
	backends.Params
}

func defaultGenerateRequest() GenerateRequest {
	return GenerateRequest{Images: 1, Params: backends.DefaultParams()}
}

func (g GenerateRequest) dispatchRequest() t2i.Request {
	return t2i.Request{Images: g.Images, Params: g.Params}
}

// GenerateResponse is the buffered success body.
type GenerateResponse struct {
	Images []string `json:"images"`
}

// SessionResponse is returned by GetNewSession.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

func (s *Server) handleGetNewSession(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	session, err := s.deps.Sessions.Create()
	if err != nil {
		s.logger.Error("Failed to create session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create session.")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: session.ID, UserID: session.UserID})
}

// lookupSession resolves an optional session ID. An empty ID means the
// stateless mode and returns nil.
func (s *Server) lookupSession(id string) (*core.Session, *apiError) {
	if id == "" {
		return nil, nil
	}
	session, err := s.deps.Sessions.Get(id)
	if err != nil {
		return nil, &apiError{status: http.StatusUnauthorized, message: msgInvalidSession, err: err}
	}
	return &session, nil
}

// sinkFor picks where outputs go: files plus history for a session, inline
// data URLs otherwise.
func (s *Server) sinkFor(session *core.Session) (t2i.Sink, error) {
	if session == nil {
		return output.InlineSink{}, nil
	}
	return output.NewDiskSink(s.config.OutputPath, session.UserID, uuid.NewString(), s.deps.History)
}

// prepare resolves the session and sink of a generation request.
func (s *Server) prepare(req GenerateRequest) (t2i.Sink, *apiError) {
	session, apiErr := s.lookupSession(req.SessionID)
	if apiErr != nil {
		return nil, apiErr
	}
	sink, err := s.sinkFor(session)
	if err != nil {
		s.logger.Error("Failed to prepare output sink", zap.Error(err))
		return nil, &apiError{status: http.StatusInternalServerError, message: msgOutputUnusable, err: err}
	}
	return sink, nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	req := defaultGenerateRequest()
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sink, apiErr := s.prepare(req)
	if apiErr != nil {
		writeError(w, apiErr.status, apiErr.message)
		return
	}

	if !s.deps.Tracker.Start() {
		writeError(w, http.StatusServiceUnavailable, msgShuttingDown)
		return
	}
	defer s.deps.Tracker.Done()

	results, derr := t2i.Collect(s.deps.Dispatcher.Dispatch(r.Context(), req.dispatchRequest(), sink))
	if derr != nil {
		writeDispatchError(w, derr)
		return
	}
	images := make([]string, len(results))
	for i, res := range results {
		images[i] = res.Image
	}
	writeJSON(w, http.StatusOK, GenerateResponse{Images: images})
}

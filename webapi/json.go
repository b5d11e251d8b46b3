package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"t2i_backend/t2i"
)

// maxBodyBytes caps API request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the error body of every API route.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are out; nothing useful to do on failure
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDispatchError renders a dispatch error. The route itself succeeded,
// so the status is 200 and the kind travels in the body.
func writeDispatchError(w http.ResponseWriter, err *t2i.Error) {
	writeJSON(w, http.StatusOK, dispatchErrorBody(err))
}

func dispatchErrorBody(err *t2i.Error) ErrorResponse {
	return ErrorResponse{Error: err.Message, ErrorKind: string(err.Kind)}
}

// decodeBody fills dst from a JSON body. An empty body leaves dst as is.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// requirePOST rejects anything but POST with 405.
func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return false
	}
	return true
}

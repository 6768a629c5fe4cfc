package api

import (
	"encoding/json"
	"net/http"
)

// Stable error kinds surfaced to clients. Raw driver errors never reach the
// wire; they are remapped to one of these.
const (
	ErrKindSessionRequired = "SESSION_ID_REQUIRED"
	ErrKindRunnerNotFound  = "RUNNER_NOT_FOUND"
	ErrKindImageNotFound   = "DOCKER_IMAGE_NOT_FOUND"
	ErrKindServer          = "SERVER_ERROR"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   kind,
		Message: message,
		Details: details,
	})
}

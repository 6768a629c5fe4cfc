package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taylored/runnerd/pkg/orchestrator"
)

// sessionHeader carries the client-chosen session id on provision.
const sessionHeader = "X-Session-Id"

type provisionRequest struct {
	NetworkMode string `json:"networkMode,omitempty"`
}

type provisionResponse struct {
	Message   string `json:"message"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Orchestrator service is running!"))
}

func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if r.Body != nil {
		// A missing or malformed body means default network mode.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	res, err := s.orch.Provision(r.Context(), r.Header.Get(sessionHeader), req.NetworkMode)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, provisionResponse{
		Message:   res.Message,
		Endpoint:  res.Endpoint,
		SessionID: res.SessionID,
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	sessionID := s.sessionID(r)
	if err := s.orch.Heartbeat(sessionID); err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: orchestrator.MsgHeartbeatOK})
}

func (s *Server) handleDeprovision(w http.ResponseWriter, r *http.Request) {
	sessionID := s.sessionID(r)
	msg, err := s.orch.Deprovision(r.Context(), sessionID)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

type listResponse struct {
	Runners []runnerView `json:"runners"`
}

type runnerView struct {
	SessionID    string `json:"sessionId"`
	ContainerID  string `json:"containerId"`
	Endpoint     string `json:"endpoint"`
	NetworkMode  string `json:"networkMode"`
	LastActivity string `json:"lastActivity"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records := s.orch.Registry().Snapshot()
	views := make([]runnerView, 0, len(records))
	for _, rec := range records {
		views = append(views, runnerView{
			SessionID:    rec.SessionID,
			ContainerID:  rec.ContainerID,
			Endpoint:     rec.Endpoint(s.orch.Config().RunnersHost),
			NetworkMode:  string(rec.NetworkMode),
			LastActivity: rec.LastActivity.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, listResponse{Runners: views})
}

// handleDownload is a declared route whose proxy semantics were never
// settled; file downloads go through the runner's event channel instead.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	writeError(w, http.StatusNotImplemented, ErrKindServer,
		"Direct download is not implemented; use the runner's downloadFile event.",
		"session "+sessionID)
}

// sessionID pulls the session id from the JSON body, falling back to the
// provision header.
func (s *Server) sessionID(r *http.Request) string {
	var req sessionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.SessionID != "" {
		return req.SessionID
	}
	return r.Header.Get(sessionHeader)
}

func (s *Server) writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrSessionRequired):
		writeError(w, http.StatusBadRequest, ErrKindSessionRequired, "Session ID is required.", "")
	case errors.Is(err, orchestrator.ErrRunnerNotFound):
		writeError(w, http.StatusNotFound, ErrKindRunnerNotFound, "No runner found for this session.", "")
	case errors.Is(err, orchestrator.ErrImageNotFound):
		writeError(w, http.StatusInternalServerError, ErrKindImageNotFound,
			"Runner image '"+s.orch.Config().Image+"' not found. Build it before provisioning.", "")
	default:
		details := ""
		if !s.orch.Config().Production() {
			details = err.Error()
		}
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, ErrKindServer, "An unexpected error occurred.", details)
	}
}

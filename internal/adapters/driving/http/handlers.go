package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// SyncRequestBody is the optional body of a sync trigger
type SyncRequestBody struct {
	Mode     domain.SyncMode `json:"mode" example:"incremental"`
	Limit    int             `json:"limit,omitempty" example:"500"`
	MaxPages int             `json:"max_pages,omitempty" example:"50"`
}

// CollectionsResponse lists collections with persisted state
type CollectionsResponse struct {
	Collections []string `json:"collections"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the state store and task queue
// @Tags         Health
// @Produce      json
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": results})
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleIssueToken godoc
// @Summary      Exchange API key
// @Description  Exchange the API key for a bearer token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.TokenRequest  true  "API key"
// @Success      200      {object}  domain.TokenResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Router       /auth/token [post]
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.IssueToken(r.Context(), req.Key)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "key is required")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "invalid key")
		default:
			writeError(w, http.StatusInternalServerError, "failed to issue token")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListCollections godoc
// @Summary      List collections
// @Tags         Collections
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  CollectionsResponse
// @Router       /collections [get]
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.syncService.Collections(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionsResponse{Collections: names})
}

// handleGetState godoc
// @Summary      Collection state
// @Description  Summarise persisted state: discovery, job records and pending deletions
// @Tags         Collections
// @Produce      json
// @Security     BearerAuth
// @Param        collection  path      string  true  "Site domain or URL"
// @Success      200         {object}  domain.StateSummary
// @Failure      400         {object}  ErrorResponse
// @Router       /collections/{collection}/state [get]
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	collection, err := domain.ParseCollection(r.PathValue("collection"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	summary, err := s.syncService.State(r.Context(), collection.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleTriggerSync godoc
// @Summary      Trigger sync
// @Description  Queue a sync run. The body is optional and defaults to incremental mode.
// @Tags         Sync
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        collection  path      string           true   "Site domain or URL"
// @Param        request     body      SyncRequestBody  false  "Run options"
// @Success      202         {object}  domain.Task
// @Failure      400         {object}  ErrorResponse
// @Failure      503         {object}  ErrorResponse  "Queue full"
// @Router       /collections/{collection}/sync [post]
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	var body SyncRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := s.taskService.Submit(r.Context(), domain.SyncRequest{
		Collection: r.PathValue("collection"),
		Mode:       body.Mode,
		Limit:      body.Limit,
		MaxPages:   body.MaxPages,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

// handleGetTask godoc
// @Summary      Get task
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// writeServiceError maps domain errors onto status codes
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrSyncInProgress), errors.Is(err, domain.ErrLockLost):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

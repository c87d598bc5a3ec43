package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/shopping-assistant/internal/agent"
)

// AssistantHandler serves the run lifecycle endpoints.
type AssistantHandler struct {
	*Handler
}

// NewAssistantHandler creates a run lifecycle handler.
func NewAssistantHandler(base *Handler) *AssistantHandler {
	return &AssistantHandler{Handler: base}
}

// RegisterRoutes registers run lifecycle routes.
func (h *AssistantHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/run", h.Run)
	r.Get("/api/status", h.Status)
	r.Get("/api/shopping/list", h.ShoppingList)
	r.Post("/api/agent/stop", h.Stop)
	r.Get("/api/agent/status", h.AgentStatus)
	r.Get("/api/agent-status", h.AgentStatus)
	r.Get("/api/logs", h.Logs)
}

type runRequest struct {
	Query string `json:"query"`
}

// Run starts an assistant run.
func (h *AssistantHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	runID, err := h.assistant.Start(req.Query)
	switch {
	case errors.Is(err, agent.ErrEmptyQuery):
		Error(w, http.StatusBadRequest, "Query is required")
		return
	case errors.Is(err, agent.ErrAlreadyRunning):
		slog.Warn("Run rejected, already processing")
		Error(w, http.StatusConflict, "A query is already being processed")
		return
	case errors.Is(err, agent.ErrClosed):
		Error(w, http.StatusServiceUnavailable, "Server is shutting down")
		return
	case err != nil:
		serverError(w, "run", err)
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"status": "started",
		"run_id": runID,
	})
}

// Status returns the current task and agent states.
func (h *AssistantHandler) Status(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.assistant.Status())
}

// ShoppingList returns the result list of the latest run.
func (h *AssistantHandler) ShoppingList(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.assistant.Items())
}

// Stop cancels the active run. Stopping an idle backend is not an error.
func (h *AssistantHandler) Stop(w http.ResponseWriter, r *http.Request) {
	stopped := h.assistant.Stop()
	slog.Info("Stop requested", "stopped_run", stopped)
	JSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// AgentStatus returns the run flag with the agent states.
func (h *AssistantHandler) AgentStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.assistant.RunStatus())
}

// Logs returns the log of the latest run.
func (h *AssistantHandler) Logs(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.assistant.Logs())
}

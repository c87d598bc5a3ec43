package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/shopping-assistant/internal/store"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports backend liveness.
type HealthHandler struct {
	repo store.Repository
}

// NewHealthHandler creates a health handler that pings repo.
func NewHealthHandler(repo store.Repository) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// RegisterHealth registers the health route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}

// Health reports whether the backend and its database are reachable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": "unreachable",
		})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

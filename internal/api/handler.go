// Package api provides HTTP handlers for the shopping assistant backend.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/shopping-assistant/internal/agent"
	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/store"
)

const maxBodyBytes = 1 << 20

// Assistant is the run engine behind the API.
type Assistant interface {
	Start(query string) (string, error)
	Stop() bool
	Status() domain.Status
	RunStatus() domain.RunStatus
	Logs() []domain.LogEntry
	Items() []domain.ShoppingItem
}

// Handler provides common handler utilities.
type Handler struct {
	assistant Assistant
	catalog   *agent.Catalog
	repo      store.Repository
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(assistant Assistant, catalog *agent.Catalog, repo store.Repository) *Handler {
	return &Handler{
		assistant: assistant,
		catalog:   catalog,
		repo:      repo,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"message": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"message": message})
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// limitParam parses the optional ?limit= query parameter.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func serverError(w http.ResponseWriter, op string, err error) {
	slog.Error("Request failed", "op", op, "error", err)
	Error(w, http.StatusInternalServerError, op+" failed")
}

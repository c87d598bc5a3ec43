//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/shopping-assistant/internal/agent"
	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/store"
)

type nopPublisher struct{}

func (nopPublisher) Publish(any) {}

type failingPingRepo struct {
	store.Repository
}

func (failingPingRepo) Ping(context.Context) error { return errors.New("database is locked") }

type testServer struct {
	router *chi.Mux
	runner *agent.Runner
	repo   store.Repository
}

func newTestServer(t *testing.T, delay time.Duration) *testServer {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	catalog, err := agent.DefaultCatalog()
	require.NoError(t, err)
	runner := agent.NewRunner(catalog, nopPublisher{}, agent.WithStepDelay(delay), agent.WithRecorder(repo))
	t.Cleanup(runner.Close)

	base := NewHandler(runner, catalog, repo)
	r := chi.NewRouter()
	NewHealthHandler(repo).RegisterHealth(r)
	NewAssistantHandler(base).RegisterRoutes(r)
	NewShoppingHandler(base).RegisterRoutes(r)
	return &testServer{router: r, runner: runner, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	got := decode[map[string]string](t, w)
	assert.Equal(t, "bar", got["foo"])
}

func TestErrorWritesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusConflict, "busy")

	assert.Equal(t, http.StatusConflict, w.Code)
	got := decode[map[string]string](t, w)
	assert.Equal(t, "busy", got["message"])
}

func TestRunLifecycle(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodPost, "/api/run", map[string]string{"query": "groceries for the week"})
	require.Equal(t, http.StatusOK, w.Code)
	started := decode[map[string]string](t, w)
	assert.Equal(t, "started", started["status"])
	assert.NotEmpty(t, started["run_id"])

	require.Eventually(t, func() bool {
		return !s.runner.RunStatus().IsRunning
	}, 2*time.Second, 5*time.Millisecond)

	w = s.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[domain.Status](t, w)
	assert.Equal(t, domain.TaskCompleted, status.CurrentTask)
	assert.Equal(t, domain.AgentIdle, status.AgentStatus["browser"])

	w = s.do(t, http.MethodGet, "/api/shopping/list", nil)
	items := decode[[]domain.ShoppingItem](t, w)
	assert.Len(t, items, 4)

	w = s.do(t, http.MethodGet, "/api/logs", nil)
	logs := decode[[]domain.LogEntry](t, w)
	require.NotEmpty(t, logs)
	assert.Equal(t, domain.LogSuccess, logs[len(logs)-1].Type)

	w = s.do(t, http.MethodGet, "/api/recent-queries", nil)
	queries := decode[[]domain.RecentQuery](t, w)
	require.Len(t, queries, 1)
	assert.Equal(t, domain.QueryGrocery, queries[0].Kind)

	w = s.do(t, http.MethodGet, "/api/browser-history?limit=2", nil)
	history := decode[[]domain.HistoryRecord](t, w)
	assert.Len(t, history, 2)
}

func TestRunValidation(t *testing.T) {
	s := newTestServer(t, time.Hour)

	tests := []struct {
		name string
		body any
		code int
	}{
		{"empty query", map[string]string{"query": "  "}, http.StatusBadRequest},
		{"missing body", nil, http.StatusBadRequest},
		{"malformed body", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/run", tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.NotEmpty(t, decode[map[string]string](t, w)["message"])
		})
	}
}

func TestRunConflictWhileProcessing(t *testing.T) {
	s := newTestServer(t, time.Hour)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/run", map[string]string{"query": "laptop"}).Code)
	w := s.do(t, http.MethodPost, "/api/run", map[string]string{"query": "phone"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/agent-status", nil)
	rs := decode[domain.RunStatus](t, w)
	assert.True(t, rs.IsRunning)
}

func TestStopEndsRun(t *testing.T) {
	s := newTestServer(t, time.Hour)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/run", map[string]string{"query": "hotel"}).Code)

	w := s.do(t, http.MethodPost, "/api/agent/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stopped", decode[map[string]string](t, w)["status"])

	w = s.do(t, http.MethodGet, "/api/agent/status", nil)
	rs := decode[domain.RunStatus](t, w)
	assert.False(t, rs.IsRunning)
	assert.Equal(t, domain.TaskStoppedByUser, rs.CurrentTask)

	// Stopping an idle backend still succeeds.
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/agent/stop", nil).Code)
}

func TestSavedList(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodGet, "/api/shopping-list", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	items := []domain.ShoppingItem{{Name: "Oat Milk", Price: 4.49, Quantity: 2, Store: "Trader Joe's"}}
	w = s.do(t, http.MethodPost, "/api/shopping-list", items)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/shopping-list", nil)
	got := decode[[]domain.ShoppingItem](t, w)
	assert.Equal(t, items, got)

	w = s.do(t, http.MethodPost, "/api/shopping-list", []map[string]any{{"price": 1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	s := newTestServer(t, 0)

	for path, n := range map[string]int{
		"/api/tech-products":    6,
		"/api/travel-options":   3,
		"/api/financial-advice": 3,
	} {
		w := s.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Len(t, decode[[]domain.ShoppingItem](t, w), n, path)
	}
}

func TestQueryAnswersWithoutRun(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodPost, "/api/query", map[string]any{
		"query":   "index fund",
		"context": map[string]any{"budget": 1000},
	})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[queryResponse](t, w)
	assert.Equal(t, domain.QueryFinance, got.QueryType)
	assert.Len(t, got.Items, 3)
	assert.InDelta(t, 1000, got.Context["budget"], 0)
	assert.False(t, s.runner.RunStatus().IsRunning)

	w = s.do(t, http.MethodPost, "/api/query", map[string]string{"query": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckout(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodPost, "/api/checkout", map[string]any{"items": []domain.ShoppingItem{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cart is empty", decode[map[string]string](t, w)["message"])

	items := []domain.ShoppingItem{
		{Name: "Quinoa", Price: 6.99, Quantity: 1},
		{Name: "Tofu", Price: 2.99, Quantity: 3},
	}
	w = s.do(t, http.MethodPost, "/api/checkout", map[string]any{"items": items})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[domain.Order](t, w)
	assert.NotEmpty(t, order.ID)
	assert.InDelta(t, 15.96, order.Total, 0.001)

	w = s.do(t, http.MethodGet, "/api/orders/"+order.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.ID, decode[domain.Order](t, w).ID)

	w = s.do(t, http.MethodGet, "/api/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidLimit(t *testing.T) {
	s := newTestServer(t, 0)
	w := s.do(t, http.MethodGet, "/api/recent-queries?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])

	r := chi.NewRouter()
	NewHealthHandler(failingPingRepo{Repository: s.repo}).RegisterHealth(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

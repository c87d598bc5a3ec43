package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/protocol"
)

func newAPIServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithTimeout(2*time.Second))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientRunPostsQuery(t *testing.T) {
	var gotBody map[string]string
	c := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/run", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(w, http.StatusOK, RunResponse{Status: "started", RunID: "01J"})
	})

	resp, err := c.Run(context.Background(), "vegan groceries")
	require.NoError(t, err)
	assert.Equal(t, "started", resp.Status)
	assert.Equal(t, "vegan groceries", gotBody["query"])
}

func TestClientErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"message field", http.StatusConflict, `{"message":"Assistant is already running"}`, "Assistant is already running"},
		{"error field", http.StatusBadRequest, `{"error":"Query is required"}`, "Query is required"},
		{"no body", http.StatusInternalServerError, ``, "request failed with status 500 Internal Server Error"},
		{"non json", http.StatusBadGateway, `<html>`, "request failed with status 502 Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Run(context.Background(), "x")
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.True(t, IsAPIError(err, tt.status))
			assert.True(t, IsAPIError(err, 0))
			assert.False(t, IsAPIError(err, http.StatusTeapot))
		})
	}
}

func TestClientStatusValidatesResponse(t *testing.T) {
	status := domain.Status{
		CurrentTask: "Searching",
		AgentStatus: domain.AgentStatusMap{"browser": domain.AgentActive},
	}
	c := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/status", r.URL.Path)
		writeJSON(w, http.StatusOK, status)
	})

	got, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, status, *got)

	bad := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"current_task": "x",
			"agent_status": map[string]string{"browser": "sleeping"},
		})
	})
	_, err = bad.Status(context.Background())
	assert.ErrorIs(t, err, protocol.ErrInvalidPayload)
}

func TestClientShoppingListValidatesItems(t *testing.T) {
	c := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"Oat Milk","price":4.49,"quantity":2},{"name":"","price":1}]`))
	})
	_, err := c.ShoppingList(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrInvalidPayload)
}

func TestClientDecodeFailure(t *testing.T) {
	c := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{`))
	})
	_, err := c.Logs(context.Background())
	require.Error(t, err)
	assert.False(t, IsAPIError(err, 0))
}

func TestClientLimitQuery(t *testing.T) {
	var rawQuery string
	c := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, []domain.RecentQuery{})
	})

	_, err := c.RecentQueries(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "limit=5", rawQuery)

	_, err = c.RecentQueries(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, rawQuery)
}

func TestClientCheckoutWrapsItems(t *testing.T) {
	var body struct {
		Items []domain.ShoppingItem `json:"items"`
	}
	c := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, domain.Order{ID: "ord", Items: body.Items, Total: domain.OrderTotal(body.Items)})
	})

	items := []domain.ShoppingItem{{Name: "Quinoa", Price: 6.99, Quantity: 2}}
	order, err := c.Checkout(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, "ord", order.ID)
	assert.InDelta(t, 13.98, order.Total, 1e-9)
	assert.Equal(t, items, body.Items)
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL)

	err := c.Health(context.Background())
	require.Error(t, err)
	assert.False(t, IsAPIError(err, 0))
}

package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/protocol"
)

// RunResponse is returned by POST /api/run.
type RunResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// QueryResult is returned by POST /api/query.
type QueryResult struct {
	Query     string                `json:"query"`
	Context   map[string]any        `json:"context,omitempty"`
	QueryType domain.QueryKind      `json:"query_type"`
	Response  string                `json:"response"`
	Items     []domain.ShoppingItem `json:"items"`
}

// Run starts an assistant run for query.
func (c *Client) Run(ctx context.Context, query string) (*RunResponse, error) {
	var out RunResponse
	if err := c.Send(ctx, http.MethodPost, "/api/run", map[string]string{"query": query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the current task and agent status map.
func (c *Client) Status(ctx context.Context) (*domain.Status, error) {
	var out domain.Status
	if err := c.Send(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	if err := protocol.Validate(out); err != nil {
		return nil, fmt.Errorf("status response: %w", err)
	}
	return &out, nil
}

// ShoppingList fetches the result list of the latest run.
func (c *Client) ShoppingList(ctx context.Context) ([]domain.ShoppingItem, error) {
	var out []domain.ShoppingItem
	if err := c.Send(ctx, http.MethodGet, "/api/shopping/list", nil, &out); err != nil {
		return nil, err
	}
	if err := protocol.ValidateItems(out); err != nil {
		return nil, fmt.Errorf("shopping list response: %w", err)
	}
	return out, nil
}

// Stop asks the backend to stop the current run.
func (c *Client) Stop(ctx context.Context) error {
	return c.Send(ctx, http.MethodPost, "/api/agent/stop", nil, nil)
}

// Query calls the secondary, non-polling query endpoint.
func (c *Client) Query(ctx context.Context, query string, qctx map[string]any) (*QueryResult, error) {
	body := map[string]any{"query": query}
	if qctx != nil {
		body["context"] = qctx
	}
	var out QueryResult
	if err := c.Send(ctx, http.MethodPost, "/api/query", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logs fetches the backend's log of the latest run.
func (c *Client) Logs(ctx context.Context) ([]domain.LogEntry, error) {
	var out []domain.LogEntry
	if err := c.Send(ctx, http.MethodGet, "/api/logs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AgentStatus fetches whether a run is active along with agent states.
func (c *Client) AgentStatus(ctx context.Context) (*domain.RunStatus, error) {
	var out domain.RunStatus
	if err := c.Send(ctx, http.MethodGet, "/api/agent-status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SavedShoppingList fetches the list saved on the backend.
func (c *Client) SavedShoppingList(ctx context.Context) ([]domain.ShoppingItem, error) {
	var out []domain.ShoppingItem
	if err := c.Send(ctx, http.MethodGet, "/api/shopping-list", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveShoppingList replaces the list saved on the backend.
func (c *Client) SaveShoppingList(ctx context.Context, items []domain.ShoppingItem) ([]domain.ShoppingItem, error) {
	var out []domain.ShoppingItem
	if err := c.Send(ctx, http.MethodPost, "/api/shopping-list", items, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecentQueries fetches the most recent queries, newest first.
func (c *Client) RecentQueries(ctx context.Context, limit int) ([]domain.RecentQuery, error) {
	var out []domain.RecentQuery
	if err := c.Send(ctx, http.MethodGet, "/api/recent-queries"+limitQuery(limit), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TechProducts fetches the tech product catalog.
func (c *Client) TechProducts(ctx context.Context) ([]domain.ShoppingItem, error) {
	return c.items(ctx, "/api/tech-products")
}

// TravelOptions fetches the travel catalog.
func (c *Client) TravelOptions(ctx context.Context) ([]domain.ShoppingItem, error) {
	return c.items(ctx, "/api/travel-options")
}

// FinancialAdvice fetches the investment catalog.
func (c *Client) FinancialAdvice(ctx context.Context) ([]domain.ShoppingItem, error) {
	return c.items(ctx, "/api/financial-advice")
}

// BrowserHistory fetches navigations recorded by the backend, newest first.
func (c *Client) BrowserHistory(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	var out []domain.HistoryRecord
	if err := c.Send(ctx, http.MethodGet, "/api/browser-history"+limitQuery(limit), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Checkout places an order for items.
func (c *Client) Checkout(ctx context.Context, items []domain.ShoppingItem) (*domain.Order, error) {
	var out domain.Order
	if err := c.Send(ctx, http.MethodPost, "/api/checkout", map[string]any{"items": items}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks that the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.Send(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *Client) items(ctx context.Context, path string) ([]domain.ShoppingItem, error) {
	var out []domain.ShoppingItem
	if err := c.Send(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func limitQuery(limit int) string {
	if limit <= 0 {
		return ""
	}
	return "?" + url.Values{"limit": []string{strconv.Itoa(limit)}}.Encode()
}

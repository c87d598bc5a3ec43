package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/metrics"
	"github.com/ashureev/shopping-assistant/internal/protocol"
)

// ShoppingHandler serves persisted lists, history, catalogs and checkout.
type ShoppingHandler struct {
	*Handler
}

// NewShoppingHandler creates a shopping data handler.
func NewShoppingHandler(base *Handler) *ShoppingHandler {
	return &ShoppingHandler{Handler: base}
}

// RegisterRoutes registers shopping data routes.
func (h *ShoppingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/query", h.Query)
	r.Get("/api/shopping-list", h.SavedList)
	r.Post("/api/shopping-list", h.SaveList)
	r.Get("/api/recent-queries", h.RecentQueries)
	r.Get("/api/browser-history", h.BrowserHistory)
	r.Get("/api/tech-products", h.catalogItems(domain.QueryTech))
	r.Get("/api/travel-options", h.catalogItems(domain.QueryTravel))
	r.Get("/api/financial-advice", h.catalogItems(domain.QueryFinance))
	r.Post("/api/checkout", h.Checkout)
	r.Get("/api/orders/{id}", h.GetOrder)
}

type queryRequest struct {
	Query   string         `json:"query"`
	Context map[string]any `json:"context,omitempty"`
}

type queryResponse struct {
	Query     string                `json:"query"`
	Context   map[string]any        `json:"context,omitempty"`
	QueryType domain.QueryKind      `json:"query_type"`
	Response  string                `json:"response"`
	Items     []domain.ShoppingItem `json:"items"`
}

// Query answers a query directly from the catalog without starting a run.
func (h *ShoppingHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		Error(w, http.StatusBadRequest, "Query is required")
		return
	}

	answer := h.catalog.Answer(query)
	if err := h.repo.RecordQuery(r.Context(), domain.RecentQuery{
		Query:     query,
		Kind:      answer.QueryType,
		CreatedAt: time.Now(),
	}); err != nil {
		slog.Warn("Failed to record query", "error", err)
	}

	JSON(w, http.StatusOK, queryResponse{
		Query:     query,
		Context:   req.Context,
		QueryType: answer.QueryType,
		Response:  answer.Response,
		Items:     answer.Items,
	})
}

// SavedList returns the saved shopping list.
func (h *ShoppingHandler) SavedList(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.SavedList(r.Context())
	if err != nil {
		serverError(w, "load shopping list", err)
		return
	}
	JSON(w, http.StatusOK, items)
}

// SaveList replaces the saved shopping list and echoes it back.
func (h *ShoppingHandler) SaveList(w http.ResponseWriter, r *http.Request) {
	var items []domain.ShoppingItem
	if err := decodeBody(w, r, &items); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := protocol.ValidateItems(items); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if items == nil {
		items = []domain.ShoppingItem{}
	}
	if err := h.repo.SaveList(r.Context(), items); err != nil {
		serverError(w, "save shopping list", err)
		return
	}
	JSON(w, http.StatusOK, items)
}

// RecentQueries returns recent queries, newest first.
func (h *ShoppingHandler) RecentQueries(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	queries, err := h.repo.RecentQueries(r.Context(), limit)
	if err != nil {
		serverError(w, "load recent queries", err)
		return
	}
	JSON(w, http.StatusOK, queries)
}

// BrowserHistory returns recorded navigations, newest first.
func (h *ShoppingHandler) BrowserHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := h.repo.BrowserHistory(r.Context(), limit)
	if err != nil {
		serverError(w, "load browser history", err)
		return
	}
	JSON(w, http.StatusOK, records)
}

func (h *ShoppingHandler) catalogItems(kind domain.QueryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, h.catalog.Products(kind))
	}
}

type checkoutRequest struct {
	Items []domain.ShoppingItem `json:"items"`
}

// Checkout creates an order from the submitted items.
func (h *ShoppingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Items) == 0 {
		Error(w, http.StatusBadRequest, "Cart is empty")
		return
	}
	if err := protocol.ValidateItems(req.Items); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	order := &domain.Order{
		ID:        ulid.Make().String(),
		Items:     req.Items,
		Total:     domain.OrderTotal(req.Items),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.CreateOrder(r.Context(), order); err != nil {
		serverError(w, "checkout", err)
		return
	}

	metrics.Checkout()
	slog.Info("Order created", "order_id", order.ID, "items", len(order.Items), "total", order.Total)
	JSON(w, http.StatusCreated, order)
}

// GetOrder returns a previously created order.
func (h *ShoppingHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.repo.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if isNotFound(err) {
			Error(w, http.StatusNotFound, "Order not found")
			return
		}
		serverError(w, "load order", err)
		return
	}
	JSON(w, http.StatusOK, order)
}

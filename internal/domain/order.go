package domain

import "time"

// QueryKind is the scenario a query was classified into.
type QueryKind string

const (
	QueryGrocery QueryKind = "grocery"
	QueryTech    QueryKind = "tech"
	QueryTravel  QueryKind = "travel"
	QueryFinance QueryKind = "finance"
)

// RecentQuery is a query previously submitted to the backend.
type RecentQuery struct {
	Query     string    `json:"query"`
	Kind      QueryKind `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is the result of a checkout.
type Order struct {
	ID        string         `json:"id"`
	Items     []ShoppingItem `json:"items"`
	Total     float64        `json:"total"`
	CreatedAt time.Time      `json:"created_at"`
}

// OrderTotal sums the line totals of items.
func OrderTotal(items []ShoppingItem) float64 {
	var total float64
	for _, item := range items {
		total += item.LineTotal()
	}
	return total
}

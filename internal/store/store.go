// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/shopping-assistant/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Repository defines the interface for persisting backend demo state.
type Repository interface {
	// RecordQuery stores a submitted query.
	RecordQuery(ctx context.Context, q domain.RecentQuery) error

	// RecentQueries returns up to limit queries, newest first.
	RecentQueries(ctx context.Context, limit int) ([]domain.RecentQuery, error)

	// RecordNavigation stores a simulated browser navigation.
	RecordNavigation(ctx context.Context, rec domain.HistoryRecord) error

	// BrowserHistory returns up to limit navigations, newest first.
	BrowserHistory(ctx context.Context, limit int) ([]domain.HistoryRecord, error)

	// SavedList returns the saved shopping list in insertion order.
	SavedList(ctx context.Context) ([]domain.ShoppingItem, error)

	// SaveList replaces the saved shopping list.
	SaveList(ctx context.Context, items []domain.ShoppingItem) error

	// CreateOrder persists a checkout order.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// GetOrder retrieves an order by ID. Returns ErrNotFound if missing.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// PruneBefore deletes queries and navigations older than cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (queriesDeleted int64, historyDeleted int64, err error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

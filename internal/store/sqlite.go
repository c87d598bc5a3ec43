package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/shared"
	_ "modernc.org/sqlite"
)

const defaultListLimit = 20

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writes to avoid SQLITE_BUSY under WAL
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS recent_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_recent_queries_created ON recent_queries(created_at);

	CREATE TABLE IF NOT EXISTS browser_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		visited_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_browser_history_visited ON browser_history(visited_at);

	CREATE TABLE IF NOT EXISTS saved_list (
		position INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		price REAL NOT NULL,
		quantity REAL NOT NULL DEFAULT 0,
		unit TEXT NOT NULL DEFAULT '',
		store TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		specs TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		items_json TEXT NOT NULL,
		total REAL NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// RecordQuery stores a submitted query.
func (s *SQLiteStore) RecordQuery(ctx context.Context, q domain.RecentQuery) error {
	return s.write(ctx, "record query", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO recent_queries (query, kind, created_at) VALUES (?, ?, ?)`,
			q.Query, string(q.Kind), q.CreatedAt.UnixMilli(),
		)
		return err
	})
}

// RecentQueries returns up to limit queries, newest first.
func (s *SQLiteStore) RecentQueries(ctx context.Context, limit int) ([]domain.RecentQuery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT query, kind, created_at FROM recent_queries ORDER BY created_at DESC, id DESC LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query recent queries: %w", err)
	}
	defer closeRows(rows, "recent queries")

	out := []domain.RecentQuery{}
	for rows.Next() {
		var q domain.RecentQuery
		var kind string
		var createdAt int64
		if err := rows.Scan(&q.Query, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan recent query row: %w", err)
		}
		q.Kind = domain.QueryKind(kind)
		q.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent queries: %w", err)
	}
	return out, nil
}

// RecordNavigation stores a simulated browser navigation.
func (s *SQLiteStore) RecordNavigation(ctx context.Context, rec domain.HistoryRecord) error {
	return s.write(ctx, "record navigation", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO browser_history (url, title, visited_at) VALUES (?, ?, ?)`,
			rec.URL, rec.Title, rec.VisitedAt.UnixMilli(),
		)
		return err
	})
}

// BrowserHistory returns up to limit navigations, newest first.
func (s *SQLiteStore) BrowserHistory(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, title, visited_at FROM browser_history ORDER BY visited_at DESC, id DESC LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query browser history: %w", err)
	}
	defer closeRows(rows, "browser history")

	out := []domain.HistoryRecord{}
	for rows.Next() {
		var rec domain.HistoryRecord
		var visitedAt int64
		if err := rows.Scan(&rec.URL, &rec.Title, &visitedAt); err != nil {
			return nil, fmt.Errorf("scan browser history row: %w", err)
		}
		rec.VisitedAt = time.UnixMilli(visitedAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate browser history: %w", err)
	}
	return out, nil
}

// SavedList returns the saved shopping list in insertion order.
func (s *SQLiteStore) SavedList(ctx context.Context) ([]domain.ShoppingItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, price, quantity, unit, store, category, specs FROM saved_list ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("query saved list: %w", err)
	}
	defer closeRows(rows, "saved list")

	out := []domain.ShoppingItem{}
	for rows.Next() {
		var item domain.ShoppingItem
		if err := rows.Scan(&item.Name, &item.Price, &item.Quantity, &item.Unit,
			&item.Store, &item.Category, &item.Specs); err != nil {
			return nil, fmt.Errorf("scan saved list row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved list: %w", err)
	}
	return out, nil
}

// SaveList replaces the saved shopping list in a single transaction.
func (s *SQLiteStore) SaveList(ctx context.Context, items []domain.ShoppingItem) error {
	return s.write(ctx, "save list", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("Failed to roll back saved list transaction", "error", rbErr)
			}
		}()

		if _, err := tx.ExecContext(ctx, `DELETE FROM saved_list`); err != nil {
			return err
		}
		for i, item := range items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO saved_list (position, name, price, quantity, unit, store, category, specs)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				i, item.Name, item.Price, item.Quantity, item.Unit, item.Store, item.Category, item.Specs,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// CreateOrder persists a checkout order.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	return s.write(ctx, "create order", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO orders (id, items_json, total, created_at) VALUES (?, ?, ?, ?)`,
			order.ID, string(itemsJSON), order.Total, order.CreatedAt.UnixMilli(),
		)
		return err
	})
}

// GetOrder retrieves an order by ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, items_json, total, created_at FROM orders WHERE id = ?`, id)

	var order domain.Order
	var itemsJSON string
	var createdAt int64
	err := row.Scan(&order.ID, &itemsJSON, &order.Total, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if err := json.Unmarshal([]byte(itemsJSON), &order.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	order.CreatedAt = time.UnixMilli(createdAt)
	return &order, nil
}

// PruneBefore deletes queries and navigations older than cutoff.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	var queries, history int64
	err := s.write(ctx, "prune", func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM recent_queries WHERE created_at < ?`, cutoff.UnixMilli())
		if err != nil {
			return fmt.Errorf("delete old queries: %w", err)
		}
		if queries, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("queries rows affected: %w", err)
		}

		res, err = s.db.ExecContext(ctx, `DELETE FROM browser_history WHERE visited_at < ?`, cutoff.UnixMilli())
		if err != nil {
			return fmt.Errorf("delete old history: %w", err)
		}
		if history, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("history rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return queries, history, nil
}

func (s *SQLiteStore) write(ctx context.Context, op string, fn func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, op, fn)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

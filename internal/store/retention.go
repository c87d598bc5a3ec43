package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRetentionInterval is how often the retention worker sweeps.
const DefaultRetentionInterval = 5 * time.Minute

// StartRetentionWorker periodically deletes queries and browser history older
// than maxAge. It blocks until ctx is done.
func StartRetentionWorker(ctx context.Context, repo Repository, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Retention worker started", "interval", interval, "max_age", maxAge)

	for {
		select {
		case <-ticker.C:
			prune(ctx, repo, maxAge)
		case <-ctx.Done():
			slog.Info("Retention worker shutting down", "reason", ctx.Err())
			return
		}
	}
}

func prune(ctx context.Context, repo Repository, maxAge time.Duration) {
	queries, history, err := repo.PruneBefore(ctx, time.Now().Add(-maxAge))
	if err != nil {
		slog.Error("Retention worker failed to prune", "error", err)
		return
	}
	if queries > 0 || history > 0 {
		slog.Info("Retention worker pruned records", "queries", queries, "history", history)
	}
}

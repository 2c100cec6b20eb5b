// Package retention sweeps conversations that have not been updated within
// the configured retention window.
package retention

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper deletes conversations last updated before a cutoff.
type Sweeper interface {
	DeleteStaleConversations(ctx context.Context, olderThan time.Time) (int64, error)
}

// Worker periodically removes stale conversations.
type Worker struct {
	repo     Sweeper
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

// NewWorker creates a worker. A non-positive maxAge disables sweeping.
func NewWorker(repo Sweeper, interval, maxAge time.Duration) *Worker {
	return &Worker{repo: repo, interval: interval, maxAge: maxAge, now: time.Now}
}

// Enabled reports whether the worker has anything to do.
func (w *Worker) Enabled() bool {
	return w.maxAge > 0 && w.interval > 0
}

// Run sweeps once immediately and then on every tick until ctx is done.
// It always returns nil so it can run inside an errgroup.
func (w *Worker) Run(ctx context.Context) error {
	if !w.Enabled() {
		slog.Info("Retention worker disabled")
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	slog.Info("Retention worker started", "interval", w.interval, "max_age", w.maxAge)

	w.Sweep(ctx)
	for {
		select {
		case <-ticker.C:
			w.Sweep(ctx)
		case <-ctx.Done():
			slog.Info("Retention worker shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Sweep performs a single cleanup pass and returns the number of deleted
// conversations.
func (w *Worker) Sweep(ctx context.Context) int64 {
	cutoff := w.now().Add(-w.maxAge)
	deleted, err := w.repo.DeleteStaleConversations(ctx, cutoff)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Retention sweep interrupted", "error", err)
			return 0
		}
		slog.Error("Retention worker failed to delete stale conversations", "error", err)
		return 0
	}
	if deleted > 0 {
		slog.Info("Retention worker deleted stale conversations", "count", deleted, "cutoff", cutoff)
	}
	return deleted
}

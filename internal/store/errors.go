package store

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// IsBusyError reports whether err is a SQLITE_BUSY error, raised when the
// database is locked by another connection.
func IsBusyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsLockedError reports whether err is a "database is locked" error.
func IsLockedError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// IsConflictError reports whether err is a SQLite concurrency error worth
// retrying.
func IsConflictError(err error) bool {
	return IsBusyError(err) || IsLockedError(err)
}

const (
	maxRetries     = 3
	retryBaseDelay = 100 * time.Millisecond
)

// withBusyRetry runs fn, retrying with exponential backoff (100ms, 200ms)
// while it fails with a conflict error.
func withBusyRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil || !IsConflictError(err) || i == maxRetries-1 {
			return err
		}
		delay := retryBaseDelay * time.Duration(1<<i)
		slog.Debug("sqlite busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

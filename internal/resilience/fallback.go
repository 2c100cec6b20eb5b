package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every candidate of a fallback sequence fails.
var ErrAllFailed = errors.New("all candidates failed")

// FirstSuccess calls fn for each candidate in order and stops at the first
// success, returning its result and index. Candidates are tried one at a
// time. When ctx is done before a candidate starts, or a candidate fails
// because ctx was cancelled, the context error is returned and no further
// candidates are tried. When every candidate fails the error wraps
// [ErrAllFailed] and the last failure.
func FirstSuccess[T, R any](ctx context.Context, candidates []T, name func(T) string, fn func(context.Context, T) (R, error)) (R, int, error) {
	var (
		zero    R
		lastErr error
	)
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, -1, err
		}
		res, err := fn(ctx, c)
		if err == nil {
			return res, i, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, -1, ctxErr
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping candidate (circuit open)", "candidate", name(c))
		} else {
			slog.Warn("candidate failed, trying next", "candidate", name(c), "error", err)
		}
	}
	if lastErr == nil {
		return zero, -1, ErrAllFailed
	}
	return zero, -1, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	if !errors.Is(ClassifyStatus(http.StatusTooManyRequests), ErrRateLimited) {
		t.Fatal("429 should classify as rate limited")
	}
	for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError, http.StatusBadGateway} {
		if !errors.Is(ClassifyStatus(code), ErrTransport) {
			t.Errorf("%d should classify as transport", code)
		}
	}
}

func TestWrapKeepsCauseAndClass(t *testing.T) {
	t.Parallel()

	cause := &StatusError{Backend: "imgbb", StatusCode: 503}
	err := Wrap(ErrUpload, cause)
	if !errors.Is(err, ErrUpload) {
		t.Fatalf("expected ErrUpload in %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 503 {
		t.Fatalf("expected StatusError 503 in %v", err)
	}
}

func TestWrapDoesNotDoubleClassify(t *testing.T) {
	t.Parallel()

	inner := fmt.Errorf("%w: slow down", ErrRateLimited)
	err := Wrap(ErrTransport, inner)
	if errors.Is(err, ErrTransport) {
		t.Fatalf("rate limit should not be reclassified: %v", err)
	}
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limit to survive: %v", err)
	}
}

func TestWrapPassesCancellationThrough(t *testing.T) {
	t.Parallel()

	err := Wrap(ErrTransport, fmt.Errorf("post: %w", context.Canceled))
	if errors.Is(err, ErrTransport) {
		t.Fatalf("cancellation should not be classified as transport: %v", err)
	}
	if Wrap(ErrTransport, nil) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
}

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{Wrap(ErrRateLimited, errors.New("x")), "rate_limited"},
		{Wrap(ErrMalformedResponse, errors.New("x")), "malformed"},
		{Wrap(ErrTransport, context.DeadlineExceeded), "timeout"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("boom"), "transport"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

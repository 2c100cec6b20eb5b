package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Failure classes reported by adapters. Adapters wrap both the class and the
// underlying cause so callers can test either.
var (
	ErrRateLimited       = errors.New("upstream rate limited")
	ErrTransport         = errors.New("upstream transport error")
	ErrMalformedResponse = errors.New("malformed upstream response")
	ErrEmptyResult       = errors.New("empty upstream result")
	ErrUpload            = errors.New("image upload failed")
)

// StatusError is a non-2xx HTTP reply from a backend without an SDK error type.
type StatusError struct {
	Backend    string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Backend, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Backend, e.StatusCode, e.Message)
}

// ClassifyStatus maps an HTTP status code to a failure class.
func ClassifyStatus(code int) error {
	if code == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return ErrTransport
}

// Wrap tags cause with class unless cause already carries a class or is a
// context error, which is returned unchanged so callers can tell cancellation
// apart from upstream failure.
func Wrap(class, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, context.Canceled) {
		return cause
	}
	for _, known := range []error{ErrRateLimited, ErrTransport, ErrMalformedResponse, ErrEmptyResult, ErrUpload} {
		if errors.Is(cause, known) {
			return cause
		}
	}
	return fmt.Errorf("%w: %w", class, cause)
}

// IsRateLimited reports whether err signals upstream throttling.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// Kind returns a short label for err, used in logs and metric attributes.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrEmptyResult):
		return "empty"
	case errors.Is(err, ErrUpload):
		return "upload"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}

package harvest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrFiltered marks records the provider hides or ships in an unusable
// shape. The engine discards them without marking the item done, so
// they stay eligible for a later run.
var ErrFiltered = errors.New("record filtered by provider")

// AuthError indicates authentication with the provider failed, after
// the single re-authentication retry where one applies.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// RequestError carries the HTTP status of a failed provider request.
type RequestError struct {
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("http status %d: %v", e.Status, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// errorTypeLabel buckets err for metrics and the run summary.
func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, ErrFiltered) {
		return "filtered"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return "auth"
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.Status {
		case http.StatusForbidden:
			return "forbidden"
		case http.StatusNotFound:
			return "not_found"
		case http.StatusTooManyRequests:
			return "rate_limited"
		}
		if reqErr.Status >= http.StatusInternalServerError {
			return "server_error"
		}
		return "http_error"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}
	return "other"
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrNotConfigured means the client has no credentials or endpoint.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrUnavailable means the provider could not be reached after retries.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrTimeout means the request exceeded its deadline.
	ErrTimeout = errors.New("provider request timed out")
)

// StatusError is a non-2xx HTTP response from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, body)
}

// Retryable reports whether the status code is worth another attempt.
func (e *StatusError) Retryable() bool {
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		// Usually transient upstream caching; a nonce makes the retry distinct.
		return true
	case http.StatusTooManyRequests:
		return true
	case 520, 521, 522, 523, 524:
		return true
	default:
		return code >= 500
	}
}

// classifyError maps a transport error onto one of the sentinel errors and an
// ErrorType string for ChatResult.
func classifyError(provider string, err error) (string, error) {
	var statusErr *StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout, fmt.Errorf("%s: %w: %v", provider, ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrorTypeTimeout, fmt.Errorf("%s: %w: %v", provider, ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return ErrorTypeAPI, err
	case errors.As(err, &statusErr):
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return ErrorTypeRateLimit, err
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return ErrorTypeUnavailable, fmt.Errorf("%w: %v", ErrNotConfigured, err)
		case statusErr.StatusCode >= 500:
			return ErrorTypeUnavailable, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return ErrorTypeHTTP, err
	case errors.As(err, &netErr):
		return ErrorTypeUnavailable, fmt.Errorf("%s: %w: %v", provider, ErrUnavailable, err)
	}
	return ErrorTypeAPI, err
}

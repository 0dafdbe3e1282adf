package graph

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel error kinds for Graph failures. Callers branch on these with
// errors.Is; the concrete *APIError carries the detail.
var (
	// ErrAuth means the bearer credential was rejected. Fatal for the
	// whole run; the core never refreshes credentials itself.
	ErrAuth = errors.New("graph: authentication rejected")
	// ErrThrottled means the API asked us to back off (HTTP 429).
	ErrThrottled = errors.New("graph: request throttled")
	// ErrServer covers transient 5xx failures.
	ErrServer = errors.New("graph: server error")
	// ErrTimeout means the request timed out before a response arrived.
	ErrTimeout = errors.New("graph: request timed out")
	// ErrNotFound means the requested resource does not exist.
	ErrNotFound = errors.New("graph: not found")
)

// APIError is a Graph API error response.
type APIError struct {
	StatusCode int
	Code       string // Graph error code, e.g. "TooManyRequests"
	Message    string
	// RetryAfter is the server-suggested delay from a 429 response,
	// zero when the header was absent.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	code := e.Code
	if code == "" {
		code = fmt.Sprintf("%d", e.StatusCode)
	}
	return fmt.Sprintf("graph API error %s: %s", code, e.Message)
}

// Unwrap maps the HTTP status onto the sentinel kinds above.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrAuth
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrThrottled
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 500:
		return ErrServer
	}
	return nil
}

// Transient reports whether the error is worth retrying: throttled,
// server-side, or timed out. Everything else fails the request immediately.
func Transient(err error) bool {
	return errors.Is(err, ErrThrottled) || errors.Is(err, ErrServer) || errors.Is(err, ErrTimeout)
}

// RetryAfter extracts the server-suggested backoff from err, zero if none.
func RetryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

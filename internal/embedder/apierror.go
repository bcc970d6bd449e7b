package embedder

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies an embedding API failure so callers can match on
// kind instead of inspecting error text.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindServer      ErrorKind = "server_error"
	KindAuth        ErrorKind = "auth_error"
	KindBadRequest  ErrorKind = "bad_request"
	KindUnknown     ErrorKind = "unknown"
)

// Retryable reports whether a failure of this kind is worth retrying.
// Rate limits and server-side faults are transient; auth and request
// errors will fail the same way every time.
func (k ErrorKind) Retryable() bool {
	return k == KindRateLimited || k == KindServer
}

// APIError is a typed embedding-API failure carrying its HTTP status and
// the provider's response body.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embedding api %s (status %d): %s", e.Kind, e.StatusCode, e.Body)
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindBadRequest
	default:
		return KindUnknown
	}
}

// newAPIError builds a typed error from a provider response.
func newAPIError(status int, body []byte) *APIError {
	return &APIError{
		Kind:       classifyStatus(status),
		StatusCode: status,
		Body:       string(body),
	}
}

// Package simerr provides structured error types for the orchestration engine.
package simerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for gateway- and state-level failure modes.
var (
	// ErrKeyMissing means no API key could be resolved from the environment
	// or the key file. No network attempt is made in this case.
	ErrKeyMissing = errors.New("decision API key not found")

	// ErrInvalidJSON means a 200 response body failed to decode as JSON.
	ErrInvalidJSON = errors.New("invalid JSON response from decision API")

	// ErrBadStructure means a 200 response decoded but did not contain a
	// choice with non-empty message content.
	ErrBadStructure = errors.New("unexpected decision API response structure")

	// ErrLocationNotFound is returned when a worker is created into an
	// unknown location. This indicates a configuration bug and is the one
	// failure that propagates to the caller instead of self-healing.
	ErrLocationNotFound = errors.New("location not found")

	// ErrWorkerNotFound is returned by registry lookups for unknown workers.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrTimeout marks a request timeout.
	ErrTimeout = errors.New("decision API request timed out")

	// ErrConnection marks a transport-level failure before any HTTP
	// status was received, such as a refused or dropped connection.
	ErrConnection = errors.New("decision API connection failed")
)

// APIError represents a failed call to the decision API. It covers both
// non-retryable HTTP statuses and exhausted retries, carrying the last
// response body as detail.
type APIError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decision API error (status %d): %s: %v", e.StatusCode, e.Detail, e.Err)
	}
	return fmt.Sprintf("decision API error (status %d): %s", e.StatusCode, e.Detail)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new decision API error.
func NewAPIError(statusCode int, detail string) *APIError {
	return &APIError{StatusCode: statusCode, Detail: detail}
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnection)
}

// Kind returns a short tag for an error, used in worker action history and
// metrics labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrKeyMissing):
		return "key_missing"
	case errors.Is(err, ErrInvalidJSON):
		return "invalid_json"
	case errors.Is(err, ErrBadStructure):
		return "bad_structure"
	default:
		return "api_call"
	}
}

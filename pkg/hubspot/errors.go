package hubspot

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	// ErrMissingToken is returned when no access token is configured.
	ErrMissingToken = errors.New("hubspot access token is required")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during a wait.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassAuth represents 401/403 authentication and authorization errors.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassClient represents other 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError represents a HubSpot API error with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error

	// RetryAfter is the server-mandated wait before re-issuing the request.
	// Only set for rate_limit errors.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hubspot %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("hubspot %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classOf extracts the error class from an error, or "" for nil/untyped errors.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	if err != nil {
		return ErrorClassNetwork
	}
	return ""
}

// shouldRetry determines if an error should be retried by the bounded retry loop.
// Rate limit responses are excluded here: they are handled by the dedicated
// Retry-After wait loop in the client, which has no attempt cap.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassAuth:
		// Invalid or insufficient credentials never recover on retry
		return false
	case ErrorClassClient:
		// 4xx errors should NOT be retried
		return false
	case ErrorClassServer:
		// 5xx server errors should be retried
		return true
	case ErrorClassNetwork:
		// Network errors should be retried
		return true
	case ErrorClassRateLimit:
		return false
	default:
		return false
	}
}

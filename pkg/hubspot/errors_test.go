package hubspot

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name: "without cause",
			err: &APIError{
				StatusCode: 401,
				ErrorClass: ErrorClassAuth,
				Message:    "authentication failed: invalid access token",
			},
			expected: "hubspot auth error (status 401): authentication failed: invalid access token",
		},
		{
			name: "with cause",
			err: &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        io.EOF,
			},
			expected: "hubspot network error (status 0): request failed: EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := &APIError{ErrorClass: ErrorClassNetwork, Message: "read failed", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	wrapped := fmt.Errorf("fetch page: %w", err)
	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Error("errors.As should find *APIError through wrapping")
	}
	if apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, ErrorClassNetwork)
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil", nil, ""},
		{"api error", &APIError{ErrorClass: ErrorClassServer}, ErrorClassServer},
		{"wrapped api error", fmt.Errorf("x: %w", &APIError{ErrorClass: ErrorClassAuth}), ErrorClassAuth},
		{"untyped error", io.EOF, ErrorClassNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classOf(tt.err); got != tt.expected {
				t.Errorf("classOf() = %q, want %q", got, tt.expected)
			}
		})
	}
}

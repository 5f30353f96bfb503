// Package testutil provides testing utilities for the deals ETL.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// DealsPath is the deals list endpoint path.
const DealsPath = "/crm/v3/objects/deals"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockHubSpot is a configurable mock HubSpot API server for testing.
type MockHubSpot struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount  int
	RequestTimes  []time.Time
	LastAuth      string
	LastUserAgent string
	LastQuery     map[string]string
}

// NewMockHubSpot creates a new mock API server.
func NewMockHubSpot() *MockHubSpot {
	mock := &MockHubSpot{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.RequestTimes = append(mock.RequestTimes, time.Now())
		mock.LastAuth = r.Header.Get("Authorization")
		mock.LastUserAgent = r.Header.Get("User-Agent")
		mock.LastQuery = map[string]string{}
		for key := range r.URL.Query() {
			mock.LastQuery[key] = r.URL.Query().Get(key)
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockHubSpot) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockHubSpot) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockHubSpot) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestTimes = nil
	m.LastAuth = ""
	m.LastUserAgent = ""
	m.LastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockHubSpot) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockHubSpot) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetDealsPages serves the given pages from the deals endpoint in cursor
// order: the first request gets page 0, a request with after=cursor-N gets
// page N. Every page except the last carries a next cursor. The probe request
// (limit=1) is answered with the first record of page 0.
func (m *MockHubSpot) SetDealsPages(pages ...[]map[string]any) {
	m.SetHandler(DealsPath, func(w http.ResponseWriter, r *http.Request) {
		idx := 0
		if after := r.URL.Query().Get("after"); after != "" {
			fmt.Sscanf(after, "cursor-%d", &idx)
		}

		w.Header().Set("Content-Type", "application/json")

		if idx >= len(pages) {
			json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
			return
		}

		results := pages[idx]
		if r.URL.Query().Get("limit") == "1" && len(results) > 0 {
			results = results[:1]
		}

		body := map[string]any{"results": results}
		if idx < len(pages)-1 && r.URL.Query().Get("limit") != "1" {
			body["paging"] = map[string]any{
				"next": map[string]any{"after": fmt.Sprintf("cursor-%d", idx+1)},
			}
		}
		json.NewEncoder(w).Encode(body)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockHubSpot) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler returns an empty deals page.
func (m *MockHubSpot) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"results": []}`))
}

// Deal builds a raw deal record for fixtures.
func Deal(id string, properties map[string]any) map[string]any {
	return map[string]any{
		"id":         id,
		"properties": properties,
		"createdAt":  "2024-01-15T10:00:00Z",
		"updatedAt":  "2024-06-01T12:30:00Z",
		"archived":   false,
	}
}

// Deals builds n sequentially-numbered deal records starting at startID.
func Deals(startID, n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%d", startID+i)
		out = append(out, Deal(id, map[string]any{
			"dealname": "Deal " + id,
			"amount":   "1000.00",
		}))
	}
	return out
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Retry-After": retryAfter,
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "internal error"}`,
	}
}

// NewAuthErrorResponse creates a 401 Unauthorized response.
func NewAuthErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"message": "Authentication credentials not found"}`,
	}
}

// Package hubspot provides the core HubSpot CRM API client with rate
// limiting, bounded transient retry, and error classification.
package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Prometheus metrics for HubSpot client operations.
var (
	hubspotRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubspot_requests_total",
		Help: "Total HubSpot requests by endpoint and status",
	}, []string{"endpoint", "status"})

	hubspotRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hubspot_request_duration_seconds",
		Help:    "HubSpot request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	hubspotErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubspot_errors_total",
		Help: "Total HubSpot errors by class",
	}, []string{"class"})

	hubspotThrottleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hubspot_throttle_wait_seconds",
		Help:    "Time spent waiting on the client-side request throttle",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1},
	})

	hubspotRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubspot_rate_limit_waits_total",
		Help: "Total number of 429 Retry-After waits",
	})
)

// DefaultBaseURL is the production HubSpot API endpoint.
const DefaultBaseURL = "https://api.hubapi.com"

// APIVersion is the CRM API version this client speaks.
const APIVersion = "v3"

// Client is the HubSpot API client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// AccessToken is the HubSpot private app access token (REQUIRED).
	AccessToken string

	// BaseURL is the API base URL (default: https://api.hubapi.com).
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// MinInterval is the minimum time between two requests. The throttle
	// allows no burst: requests are spaced at least MinInterval apart
	// regardless of prior idle time.
	MinInterval time.Duration

	// Retry configuration for transient (5xx/network) failures.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(accessToken string) Config {
	return Config{
		AccessToken: accessToken,
		BaseURL:     DefaultBaseURL,
		UserAgent:   "hubspot-deals-etl/1.0",
		Timeout:     30 * time.Second,
		MinInterval: 100 * time.Millisecond, // 10 req/s
		Retry:       DefaultRetryConfig(),
	}
}

// New creates a new HubSpot client.
func New(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, ErrMissingToken
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "hubspot-deals-etl/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 100 * time.Millisecond
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "hubspot-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		// Burst 1: requests stay at least MinInterval apart even after idle.
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		config:  cfg,
		logger:  logger,
	}, nil
}

// Request performs a GET request against an API path and returns the raw JSON
// body. It orchestrates the client-side throttle, the unbounded Retry-After
// loop for 429 responses, and the bounded backoff loop for transient failures.
func (c *Client) Request(ctx context.Context, path string, query url.Values) ([]byte, error) {
	for {
		body, err := c.requestOnce(ctx, path, query)

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.ErrorClass == ErrorClassRateLimit {
			// Server asked us to back off. This path is deliberately not
			// bounded by the retry budget: the limit window always clears.
			hubspotRateLimitWaitsTotal.Inc()
			c.logger.Warn().
				Str("endpoint", path).
				Dur("retry_after", apiErr.RetryAfter).
				Msg("Rate limit hit, waiting before re-issuing request")

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
			case <-time.After(apiErr.RetryAfter):
			}
			continue
		}

		return body, err
	}
}

// requestOnce runs one request through the bounded transient-retry loop.
func (c *Client) requestOnce(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var body []byte

	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		var execErr error
		body, execErr = c.execute(ctx, path, query)
		return execErr
	})

	return body, err
}

// execute issues a single HTTP request and classifies the outcome.
func (c *Client) execute(ctx context.Context, path string, query url.Values) ([]byte, error) {
	// Client-side throttle: enforce the minimum inter-request interval.
	throttleStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
	}
	if waited := time.Since(throttleStart); waited > 0 {
		hubspotThrottleWaitSeconds.Observe(waited.Seconds())
	}

	reqURL := c.config.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	hubspotRequestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())

	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", path).Msg("HTTP request failed")
		hubspotErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		hubspotRequestsTotal.WithLabelValues(path, "network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	hubspotRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		return nil, c.errorFromResponse(path, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		hubspotErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	return data, nil
}

// errorFromResponse builds a classified APIError from a >= 400 response.
func (c *Client) errorFromResponse(path string, resp *http.Response) *APIError {
	errorClass := classifyStatus(resp.StatusCode)
	hubspotErrorsTotal.WithLabelValues(string(errorClass)).Inc()

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: errorClass,
		Message:    resp.Status,
	}

	switch errorClass {
	case ErrorClassAuth:
		if resp.StatusCode == http.StatusUnauthorized {
			apiErr.Message = "authentication failed: invalid access token"
		} else {
			apiErr.Message = "forbidden: insufficient permissions"
		}
	case ErrorClassRateLimit:
		apiErr.RetryAfter = parseRetryAfter(resp.Header)
		apiErr.Message = "rate limit exceeded"
	default:
		// Carry the server-provided message when the body is decodable.
		if msg := decodeErrorMessage(resp.Body); msg != "" {
			apiErr.Message = msg
		}
	}

	c.logger.Warn().
		Str("endpoint", path).
		Int("status", resp.StatusCode).
		Str("error_class", string(errorClass)).
		Msg("HubSpot request error")

	return apiErr
}

// classifyStatus categorizes an HTTP status code for handling and observability.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrorClassAuth
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 500:
		return ErrorClassServer
	case statusCode >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// parseRetryAfter reads the Retry-After header in seconds, defaulting to 1.
func parseRetryAfter(headers http.Header) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return 1 * time.Second
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 1 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// decodeErrorMessage extracts the "message" field from a HubSpot error body.
func decodeErrorMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Message
}

// Close releases idle connections held by the underlying transport.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

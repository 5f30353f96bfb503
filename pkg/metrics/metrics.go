// Package metrics provides the centralized Prometheus metrics registry for
// the deals ETL. All metrics are defined in their respective packages
// (hubspot, extract, sink) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the ETL.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/hubspot):
//   - hubspot_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - hubspot_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - hubspot_errors_total{class} (Counter): Errors by class (auth, client, server, rate_limit, network)
//   - hubspot_throttle_wait_seconds (Histogram): Time spent in the client-side min-interval throttle
//   - hubspot_rate_limit_waits_total (Counter): 429 Retry-After waits
//
// Retry Metrics (pkg/hubspot):
//   - hubspot_retries_total{error_class} (Counter): Retry attempts by error class
//   - hubspot_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - hubspot_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Extraction Metrics (pkg/extract):
//   - etl_rows_extracted_total{tenant} (Counter): Rows yielded by extraction streams
//   - etl_checkpoints_total (Counter): Checkpoint signals emitted
//
// Sink Metrics (pkg/sink):
//   - etl_rows_loaded_total (Counter): Rows upserted into the sink
//   - etl_load_batches_total{outcome} (Counter): Load batches by outcome (ok, error)
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(hubspot_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(hubspot_request_duration_seconds_bucket[5m]))
//
//   # Extraction Throughput
//   rate(etl_rows_extracted_total[5m])
//
//   # Load Failure Ratio
//   rate(etl_load_batches_total{outcome="error"}[5m]) / rate(etl_load_batches_total[5m])

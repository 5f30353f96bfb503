// Package sink defines the destination contract for normalized rows and a
// SQLite implementation with merge-by-key semantics.
package sink

import (
	"context"
	"fmt"

	"github.com/crmsync/hubspot-deals-etl/pkg/extract"
)

// Sink accepts batches of normalized rows and performs upsert writes keyed by
// deal id. A row with a given deal_id replaces any prior row with the same
// key in full; rows are durable only once Upsert returns without error.
type Sink interface {
	Upsert(ctx context.Context, rows []extract.Row) (*LoadResult, error)
	Close() error
}

// LoadResult reports one acknowledged batch.
type LoadResult struct {
	// LoadID identifies the batch for log correlation.
	LoadID string

	// RowsWritten is the number of rows inserted or replaced.
	RowsWritten int
}

// BatchError reports a failed batch with enough detail to identify which
// rows, if any, were applied before the failure.
type BatchError struct {
	LoadID string

	// Applied lists the deal ids durably written despite the failure. Empty
	// for transactional sinks, which roll the whole batch back.
	Applied []string

	Err error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("load %s failed (%d rows applied): %v", e.LoadID, len(e.Applied), e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *BatchError) Unwrap() error {
	return e.Err
}

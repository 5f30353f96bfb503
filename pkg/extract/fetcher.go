package extract

import (
	"context"

	"github.com/crmsync/hubspot-deals-etl/pkg/hubspot"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PageIterator walks the paginated deals list endpoint one page at a time.
// Pages are strictly sequential: the next request is not issued until the
// prior page's cursor has been obtained.
//
// Usage follows the scanner pattern:
//
//	it := extract.NewPageIterator(client, query)
//	for it.Next(ctx) {
//	    deals := it.Page()
//	    ...
//	}
//	if err := it.Err(); err != nil {
//	    ...
//	}
type PageIterator struct {
	client *hubspot.Client
	query  hubspot.DealsQuery
	logger zerolog.Logger

	after    string
	page     []hubspot.Deal
	pageNum  int
	requests int
	done     bool
	err      error
}

// NewPageIterator creates an iterator over all pages matching the query.
func NewPageIterator(client *hubspot.Client, query hubspot.DealsQuery) *PageIterator {
	if query.Limit <= 0 {
		query.Limit = hubspot.MaxPageSize
	}
	return &PageIterator{
		client: client,
		query:  query,
		logger: log.With().Str("component", "page-iterator").Logger(),
	}
}

// Next fetches the next page. It returns false when the sequence is
// exhausted or a fetch failed; check Err to distinguish.
func (it *PageIterator) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}

	query := it.query
	query.After = it.after

	page, err := it.client.GetDeals(ctx, query)
	it.requests++
	if err != nil {
		// No partial data for the failed page; prior pages stay valid.
		it.err = err
		it.done = true
		it.page = nil
		return false
	}

	// An empty page signals exhaustion just like a missing cursor.
	if len(page.Results) == 0 {
		it.done = true
		it.page = nil
		return false
	}

	it.pageNum++
	it.page = page.Results

	it.logger.Debug().
		Int("page", it.pageNum).
		Int("records", len(page.Results)).
		Bool("has_more", page.NextCursor() != "").
		Msg("Fetched deals page")

	if cursor := page.NextCursor(); cursor != "" {
		it.after = cursor
	} else {
		it.done = true
	}

	return true
}

// Page returns the records of the current page, in API order.
func (it *PageIterator) Page() []hubspot.Deal {
	return it.page
}

// Err returns the error that terminated iteration, if any.
func (it *PageIterator) Err() error {
	return it.err
}

// Requests returns the number of page requests issued so far.
func (it *PageIterator) Requests() int {
	return it.requests
}

package hubspot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MaxPageSize is the largest page the deals list endpoint accepts.
const MaxPageSize = 100

// Deal is the API-native representation of a deal: an opaque id, the archived
// flag from the record envelope, creation/update timestamps, and an unordered
// property map. Property values arrive as JSON primitives (string, number,
// boolean, or null), so the map is deliberately untyped.
type Deal struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
	CreatedAt  string         `json:"createdAt"`
	UpdatedAt  string         `json:"updatedAt"`
	Archived   bool           `json:"archived"`
}

// PagingNext carries the opaque cursor for the next page.
type PagingNext struct {
	After string `json:"after"`
	Link  string `json:"link,omitempty"`
}

// Paging is the pagination envelope of a list response.
type Paging struct {
	Next *PagingNext `json:"next,omitempty"`
}

// DealsPage is one page of the deals list endpoint.
type DealsPage struct {
	Results []Deal  `json:"results"`
	Paging  *Paging `json:"paging,omitempty"`
}

// NextCursor returns the cursor for the next page, or "" when this is the
// last page.
func (p *DealsPage) NextCursor() string {
	if p.Paging == nil || p.Paging.Next == nil {
		return ""
	}
	return p.Paging.Next.After
}

// DealsQuery holds the query parameters for a deals list request.
type DealsQuery struct {
	// Limit is the page size (1..100). Values above 100 are clamped, values
	// below 1 are coerced to 1.
	Limit int

	// After is the pagination cursor from the previous response ("" for the
	// first page).
	After string

	// Properties is the list of deal property names to retrieve.
	Properties []string

	// Archived includes archived deals when true.
	Archived bool
}

// PropertyDefinition describes one deal property from the properties endpoint.
type PropertyDefinition struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Type      string `json:"type"`
	FieldType string `json:"fieldType"`
}

// GetDeals fetches one page of deals.
func (c *Client) GetDeals(ctx context.Context, q DealsQuery) (*DealsPage, error) {
	limit := q.Limit
	if limit > MaxPageSize {
		c.logger.Warn().
			Int("limit", limit).
			Int("max", MaxPageSize).
			Msg("Page size exceeds maximum, clamping")
		limit = MaxPageSize
	}
	if limit < 1 {
		limit = 1
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("archived", strconv.FormatBool(q.Archived))
	if q.After != "" {
		query.Set("after", q.After)
	}
	if len(q.Properties) > 0 {
		query.Set("properties", strings.Join(q.Properties, ","))
	}

	body, err := c.Request(ctx, "/crm/"+APIVersion+"/objects/deals", query)
	if err != nil {
		return nil, err
	}

	var page DealsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode deals page: %w", err)
	}

	return &page, nil
}

// GetDeal fetches a single deal by id.
func (c *Client) GetDeal(ctx context.Context, dealID string, properties []string) (*Deal, error) {
	query := url.Values{}
	if len(properties) > 0 {
		query.Set("properties", strings.Join(properties, ","))
	}

	body, err := c.Request(ctx, "/crm/"+APIVersion+"/objects/deals/"+url.PathEscape(dealID), query)
	if err != nil {
		return nil, err
	}

	var deal Deal
	if err := json.Unmarshal(body, &deal); err != nil {
		return nil, fmt.Errorf("decode deal %s: %w", dealID, err)
	}

	return &deal, nil
}

// GetDealProperties fetches the deal property definitions.
func (c *Client) GetDealProperties(ctx context.Context) ([]PropertyDefinition, error) {
	body, err := c.Request(ctx, "/crm/"+APIVersion+"/properties/deals", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []PropertyDefinition `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode deal properties: %w", err)
	}

	return payload.Results, nil
}

// VerifyCredentials checks the access token with a minimal one-record probe.
func (c *Client) VerifyCredentials(ctx context.Context) error {
	if _, err := c.GetDeals(ctx, DealsQuery{Limit: 1}); err != nil {
		return fmt.Errorf("verify credentials: %w", err)
	}
	return nil
}

package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/crmsync/hubspot-deals-etl/pkg/hubspot"
)

// Transform converts one raw deal into a normalized Row. It is pure and
// total: coercion failures degrade to null or a documented default, never an
// error. Calling it twice with the same inputs yields identical output.
func Transform(deal hubspot.Deal, tenantID, scanID string, extractedAt time.Time) Row {
	props := deal.Properties

	currency := "USD"
	if c := toStringPtr(props["deal_currency_code"]); c != nil {
		currency = *c
	}

	return Row{
		DealID: deal.ID,

		DealName:    toStringPtr(props["dealname"]),
		Amount:      toNumeric(props["amount"]),
		Currency:    currency,
		DealStage:   toStringPtr(props["dealstage"]),
		DealType:    toStringPtr(props["dealtype"]),
		Pipeline:    toStringPtr(props["pipeline"]),
		Description: toStringPtr(props["description"]),

		OwnerID: toStringPtr(props["hubspot_owner_id"]),

		NumAssociatedContacts:  toCount(props["num_associated_contacts"]),
		NumAssociatedCompanies: toCount(props["num_associated_companies"]),
		ForecastAmount:         toNumeric(props["hs_forecast_amount"]),
		ForecastProbability:    toNumeric(props["hs_forecast_probability"]),

		// Archived comes from the record envelope, not the property map.
		Archived:     deal.Archived,
		IsClosedWon:  toBool(props["hs_is_closed_won"]),
		IsClosedLost: toBool(props["hs_is_closed_lost"]),

		Priority: toStringPtr(props["hs_priority"]),

		CloseDate:        toDate(props["closedate"]),
		CreateDate:       toDate(props["createdate"]),
		LastModifiedDate: toDate(props["hs_lastmodifieddate"]),
		CreatedAt:        deal.CreatedAt,
		UpdatedAt:        deal.UpdatedAt,

		RawProperties: props,

		TenantID:     tenantID,
		ScanID:       scanID,
		SourceSystem: SourceSystem,
		APIVersion:   hubspot.APIVersion,
		ExtractedAt:  extractedAt.UTC().Format(time.RFC3339),
		IsDeleted:    false,
	}
}

// toNumeric coerces a raw property value to a float. Empty string and null
// yield nil; unparseable values yield nil rather than an error.
func toNumeric(value any) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return &v
	case string:
		if v == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

// toBool coerces a raw property value to a boolean. Booleans pass through;
// strings compare case-insensitively against "true", anything else is false.
func toBool(value any) *bool {
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		return &v
	case string:
		if v == "" {
			return nil
		}
		b := strings.EqualFold(v, "true")
		return &b
	default:
		b := false
		return &b
	}
}

// toCount coerces an associated-record count. Null and empty default to 0;
// the API guarantees numeric strings here, but a non-numeric value still
// degrades to 0 instead of failing the row.
func toCount(value any) int {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		if v < 0 {
			return 0
		}
		return int(v)
	case string:
		if v == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			return 0
		}
		return int(parsed)
	default:
		return 0
	}
}

// toDate passes an ISO-8601 date through as an opaque string, without
// reformatting. Empty and null yield nil.
func toDate(value any) *string {
	return toStringPtr(value)
}

// toStringPtr returns the value as a string pointer, or nil for null/empty.
func toStringPtr(value any) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return &v
	default:
		return nil
	}
}

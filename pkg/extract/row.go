package extract

// SourceSystem tags every row with the upstream system it came from.
const SourceSystem = "hubspot"

// DefaultProperties is the deal property set extracted when the caller does
// not supply one.
var DefaultProperties = []string{
	"dealname",
	"amount",
	"dealstage",
	"dealtype",
	"pipeline",
	"closedate",
	"createdate",
	"hs_lastmodifieddate",
	"hubspot_owner_id",
	"deal_currency_code",
	"num_associated_contacts",
	"num_associated_companies",
	"hs_forecast_amount",
	"hs_forecast_probability",
	"hs_is_closed_won",
	"hs_is_closed_lost",
	"hs_priority",
	"description",
}

// Row is the normalized output unit of the extraction. A Row is a pure
// function of (raw deal, tenant id, scan id, extraction timestamp): building
// it never fails and never mutates its inputs.
//
// Date fields are opaque ISO-8601 strings passed through verbatim; the sink
// decides how to store them. Nullable fields use pointers so absence survives
// the trip to the destination.
type Row struct {
	// Identity. DealID is the sole merge key.
	DealID string `json:"deal_id"`

	// Core deal information.
	DealName    *string  `json:"deal_name"`
	Amount      *float64 `json:"amount"`
	Currency    string   `json:"currency"`
	DealStage   *string  `json:"dealstage"`
	DealType    *string  `json:"dealtype"`
	Pipeline    *string  `json:"pipeline"`
	Description *string  `json:"description"`

	// Owner and assignment.
	OwnerID *string `json:"owner_id"`

	// Deal metrics.
	NumAssociatedContacts  int      `json:"num_associated_contacts"`
	NumAssociatedCompanies int      `json:"num_associated_companies"`
	ForecastAmount         *float64 `json:"hs_forecast_amount"`
	ForecastProbability    *float64 `json:"hs_forecast_probability"`

	// Status flags.
	Archived     bool  `json:"archived"`
	IsClosedWon  *bool `json:"hs_is_closed_won"`
	IsClosedLost *bool `json:"hs_is_closed_lost"`

	Priority *string `json:"hs_priority"`

	// Dates and timestamps, passed through as received.
	CloseDate        *string `json:"close_date"`
	CreateDate       *string `json:"createdate"`
	LastModifiedDate *string `json:"hs_lastmodifieddate"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`

	// RawProperties retains the full property map verbatim so schema drift
	// upstream never loses data.
	RawProperties map[string]any `json:"raw_properties"`

	// ETL metadata.
	TenantID     string `json:"_tenant_id"`
	ScanID       string `json:"_scan_id"`
	SourceSystem string `json:"_source_system"`
	APIVersion   string `json:"_api_version"`
	ExtractedAt  string `json:"_extracted_at"`
	IsDeleted    bool   `json:"_is_deleted"`
}

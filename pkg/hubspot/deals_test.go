package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newDealsServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(testConfig(server.URL))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client, server
}

func TestGetDeals_QueryParameters(t *testing.T) {
	var gotQuery map[string]string
	client, _ := newDealsServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		w.Write([]byte(`{"results": []}`))
	})

	_, err := client.GetDeals(context.Background(), DealsQuery{
		Limit:      50,
		After:      "abc123",
		Properties: []string{"dealname", "amount"},
		Archived:   true,
	})
	if err != nil {
		t.Fatalf("GetDeals() failed: %v", err)
	}

	want := map[string]string{
		"limit":      "50",
		"after":      "abc123",
		"properties": "dealname,amount",
		"archived":   "true",
	}
	for key, value := range want {
		if gotQuery[key] != value {
			t.Errorf("query[%q] = %q, want %q", key, gotQuery[key], value)
		}
	}
}

func TestGetDeals_LimitClamped(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit string
	}{
		{"above maximum", 500, "100"},
		{"at maximum", 100, "100"},
		{"below minimum", 0, "1"},
		{"negative", -5, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit string
			client, _ := newDealsServer(t, func(w http.ResponseWriter, r *http.Request) {
				gotLimit = r.URL.Query().Get("limit")
				w.Write([]byte(`{"results": []}`))
			})

			if _, err := client.GetDeals(context.Background(), DealsQuery{Limit: tt.limit}); err != nil {
				t.Fatalf("GetDeals() failed: %v", err)
			}
			if gotLimit != tt.wantLimit {
				t.Errorf("limit = %q, want %q", gotLimit, tt.wantLimit)
			}
		})
	}
}

func TestGetDeals_DecodesEnvelope(t *testing.T) {
	client, _ := newDealsServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{
					"id":         "512",
					"properties": map[string]any{"dealname": "Big Deal", "amount": "1000.50"},
					"createdAt":  "2024-01-15T10:00:00Z",
					"updatedAt":  "2024-06-01T12:30:00Z",
					"archived":   false,
				},
			},
			"paging": map[string]any{"next": map[string]any{"after": "512-next"}},
		})
	})

	page, err := client.GetDeals(context.Background(), DealsQuery{Limit: 10})
	if err != nil {
		t.Fatalf("GetDeals() failed: %v", err)
	}

	if len(page.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(page.Results))
	}
	deal := page.Results[0]
	if deal.ID != "512" {
		t.Errorf("ID = %q, want %q", deal.ID, "512")
	}
	if deal.Properties["dealname"] != "Big Deal" {
		t.Errorf("dealname = %v, want Big Deal", deal.Properties["dealname"])
	}
	if page.NextCursor() != "512-next" {
		t.Errorf("NextCursor() = %q, want %q", page.NextCursor(), "512-next")
	}
}

func TestDealsPage_NextCursor_LastPage(t *testing.T) {
	page := &DealsPage{Results: []Deal{{ID: "1"}}}
	if page.NextCursor() != "" {
		t.Errorf("NextCursor() = %q, want empty for last page", page.NextCursor())
	}
}

func TestGetDeal(t *testing.T) {
	client, _ := newDealsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm/v3/objects/deals/777" {
			t.Errorf("Path = %q, want deal-by-id path", r.URL.Path)
		}
		w.Write([]byte(`{"id": "777", "properties": {"dealname": "Solo"}, "archived": true}`))
	})

	deal, err := client.GetDeal(context.Background(), "777", []string{"dealname"})
	if err != nil {
		t.Fatalf("GetDeal() failed: %v", err)
	}
	if deal.ID != "777" {
		t.Errorf("ID = %q, want 777", deal.ID)
	}
	if !deal.Archived {
		t.Error("Archived should be true")
	}
}

func TestGetDealProperties(t *testing.T) {
	client, _ := newDealsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm/v3/properties/deals" {
			t.Errorf("Path = %q, want properties path", r.URL.Path)
		}
		w.Write([]byte(`{"results": [{"name": "amount", "label": "Amount", "type": "number"}]}`))
	})

	props, err := client.GetDealProperties(context.Background())
	if err != nil {
		t.Fatalf("GetDealProperties() failed: %v", err)
	}
	if len(props) != 1 || props[0].Name != "amount" {
		t.Errorf("props = %+v, want one 'amount' definition", props)
	}
}

func TestVerifyCredentials(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var gotLimit string
		client, _ := newDealsServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotLimit = r.URL.Query().Get("limit")
			w.Write([]byte(`{"results": []}`))
		})

		if err := client.VerifyCredentials(context.Background()); err != nil {
			t.Fatalf("VerifyCredentials() failed: %v", err)
		}
		if gotLimit != "1" {
			t.Errorf("probe limit = %q, want 1", gotLimit)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		client, _ := newDealsServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message": "bad token"}`))
		})

		err := client.VerifyCredentials(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.ErrorClass != ErrorClassAuth {
			t.Errorf("Expected auth APIError, got %v", err)
		}
	})
}

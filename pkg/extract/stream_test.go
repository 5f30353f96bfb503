package extract

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/crmsync/hubspot-deals-etl/internal/testutil"
	"github.com/crmsync/hubspot-deals-etl/pkg/hubspot"
)

// recordingObserver captures stream notifications for assertions.
type recordingObserver struct {
	progress []int
	errs     []error
}

func (o *recordingObserver) OnProgress(count int) { o.progress = append(o.progress, count) }
func (o *recordingObserver) OnError(err error)    { o.errs = append(o.errs, err) }

func TestStream_EndToEndFixture(t *testing.T) {
	mock := testutil.NewMockHubSpot()
	defer mock.Close()
	mock.SetDealsPages(
		[]map[string]any{
			testutil.Deal("1", map[string]any{"dealname": "First", "amount": "100.50"}),
			testutil.Deal("2", map[string]any{"dealname": "Second", "amount": ""}),
		},
		[]map[string]any{
			testutil.Deal("3", map[string]any{"dealname": "Third", "amount": "7.25"}),
		},
	)

	client := newTestClient(t, mock)
	stream, err := NewStream(context.Background(), client, StreamConfig{
		TenantID: "acme",
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("NewStream() failed: %v", err)
	}
	defer stream.Close()

	var rows []Row
	for stream.Next() {
		rows = append(rows, stream.Row())
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if rows[0].Amount == nil || *rows[0].Amount != 100.50 {
		t.Errorf("rows[0].Amount = %v, want 100.50", rows[0].Amount)
	}
	if rows[1].Amount != nil {
		t.Errorf("rows[1].Amount = %v, want nil for empty string", rows[1].Amount)
	}
	if rows[2].Amount == nil || *rows[2].Amount != 7.25 {
		t.Errorf("rows[2].Amount = %v, want 7.25", rows[2].Amount)
	}

	// Ordering preserved within and across pages.
	for i, want := range []string{"1", "2", "3"} {
		if rows[i].DealID != want {
			t.Errorf("rows[%d].DealID = %q, want %q", i, rows[i].DealID, want)
		}
	}

	// One scan id and one extraction timestamp for the whole run.
	for _, row := range rows {
		if row.ScanID != stream.ScanID() {
			t.Errorf("row scan id = %q, want %q", row.ScanID, stream.ScanID())
		}
		if row.ExtractedAt != rows[0].ExtractedAt {
			t.Error("All rows must share one extraction timestamp")
		}
	}
}

func TestStream_CredentialProbeFailureAbortsBeforeRows(t *testing.T) {
	mock := testutil.NewMockHubSpot()
	defer mock.Close()
	mock.SetResponse(testutil.DealsPath, testutil.NewAuthErrorResponse())

	client := newTestClient(t, mock)
	_, err := NewStream(context.Background(), client, StreamConfig{})

	var apiErr *hubspot.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorClass != hubspot.ErrorClassAuth {
		t.Fatalf("Expected auth APIError from probe, got %v", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("Requests = %d, want 1 (probe only)", mock.GetRequestCount())
	}
}

func TestStream_GeneratedScanID(t *testing.T) {
	mock := testutil.NewMockHubSpot()
	defer mock.Close()

	client := newTestClient(t, mock)
	stream, err := NewStream(context.Background(), client, StreamConfig{})
	if err != nil {
		t.Fatalf("NewStream() failed: %v", err)
	}
	defer stream.Close()

	if !strings.HasPrefix(stream.ScanID(), "scan_") {
		t.Errorf("ScanID = %q, want scan_ prefix", stream.ScanID())
	}
}

func TestStream_CallerSuppliedScanID(t *testing.T) {
	mock := testutil.NewMockHubSpot()
	defer mock.Close()

	client := newTestClient(t, mock)
	stream, err := NewStream(context.Background(), client, StreamConfig{ScanID: "scan_custom"})
	if err != nil {
		t.Fatalf("NewStream() failed: %v", err)
	}
	defer stream.Close()

	if stream.ScanID() != "scan_custom" {
		t.Errorf("ScanID = %q, want scan_custom", stream.ScanID())
	}
}

func TestStream_CheckpointsEveryN(t *testing.T) {
	mock := testutil.NewMockHubSpot()
	defer mock.Close()
	mock.SetDealsPages(testutil.Deals(1, 10))

	observer := &recordingObserver{}
	client := newTestClient(t, mock)
	stream, err := NewStream(context.Background(), client, StreamConfig{
		CheckpointEvery: 3,
		Observer:        observer,
	})
	if err != nil {
		t.Fatalf("NewStream() failed: %v", err)
	}
	defer stream.Close()

	for stream.Next() {
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	want := []int{3, 6, 9}
	if len(observer.progress) != len(want) {
		t.Fatalf("Checkpoints = %v, want %v", observer.progress, want)
	}
	for i, count := range want {
		if observer.progress[i] != count {
			t.Errorf("Checkpoint %d = %d, want %d", i, observer.progress[i], count)
		}
	}
}

func TestStream_MidStreamErrorNotified(t *testing.T) {
	mock := testutil.NewMockHubSpot()
	defer mock.Close()

	calls := 0
	mock.SetHandler(testutil.DealsPath, func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1: // probe
			w.Write([]byte(`{"results": [{"id": "1", "properties": {}}]}`))
		case 2:
			w.Write([]byte(`{"results": [{"id": "1", "properties": {}}], "paging": {"next": {"after": "p2"}}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message": "cursor expired"}`))
		}
	})

	observer := &recordingObserver{}
	client := newTestClient(t, mock)
	stream, err := NewStream(context.Background(), client, StreamConfig{Observer: observer})
	if err != nil {
		t.Fatalf("NewStream() failed: %v", err)
	}
	defer stream.Close()

	rows := 0
	for stream.Next() {
		rows++
	}

	if rows != 1 {
		t.Errorf("Rows yielded before failure = %d, want 1", rows)
	}
	if stream.Err() == nil {
		t.Fatal("Err() should report the page failure")
	}
	if len(observer.errs) != 1 {
		t.Errorf("Observer errors = %d, want 1", len(observer.errs))
	}
}

func TestStream_CloseIdempotent(t *testing.T) {
	mock := testutil.NewMockHubSpot()
	defer mock.Close()
	mock.SetDealsPages(testutil.Deals(1, 2))

	client := newTestClient(t, mock)
	stream, err := NewStream(context.Background(), client, StreamConfig{})
	if err != nil {
		t.Fatalf("NewStream() failed: %v", err)
	}

	// Early close: the consumer stopped pulling.
	if err := stream.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("Second Close() failed: %v", err)
	}
	if stream.Next() {
		t.Error("Next() after Close() must be false")
	}
}

package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/crmsync/hubspot-deals-etl/pkg/hubspot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for extraction streams.
var (
	extractRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_rows_extracted_total",
		Help: "Total rows yielded by extraction streams, by tenant",
	}, []string{"tenant"})

	extractCheckpointsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etl_checkpoints_total",
		Help: "Total checkpoint signals emitted",
	})
)

// DefaultCheckpointEvery is the default row interval between progress signals.
const DefaultCheckpointEvery = 50

// Observer receives progress and error notifications from a Stream. The core
// carries no ambient logging; the calling shell wires an Observer to whatever
// facility it prefers. Checkpoints are observability only, they carry no
// resumability guarantee.
type Observer interface {
	OnProgress(count int)
	OnError(err error)
}

// NopObserver is an Observer that ignores all notifications.
type NopObserver struct{}

func (NopObserver) OnProgress(int) {}
func (NopObserver) OnError(error)  {}

// StreamConfig holds extraction stream parameters.
type StreamConfig struct {
	// TenantID tags every row (default "default").
	TenantID string

	// ScanID identifies this extraction run. Generated from the start
	// timestamp when empty, stable for the lifetime of the stream.
	ScanID string

	// Properties is the deal property set to extract (default
	// DefaultProperties).
	Properties []string

	// Archived includes archived deals when true.
	Archived bool

	// PageSize is the page size for list requests (clamped to 100).
	PageSize int

	// CheckpointEvery emits a progress signal every N rows (default 50).
	CheckpointEvery int

	// Observer receives progress/error callbacks (default NopObserver).
	Observer Observer
}

// Stream is a lazy, finite, non-restartable sequence of normalized rows for
// one scan. Rows preserve page-internal and page-to-page ordering. The
// consumer must call Close when done, whatever the exit path; Close is
// idempotent and also runs on natural exhaustion.
type Stream struct {
	client *hubspot.Client
	pages  *PageIterator
	config StreamConfig
	logger zerolog.Logger

	ctx         context.Context
	scanID      string
	extractedAt time.Time

	buffer []Row
	row    Row
	count  int
	err    error
	closed bool
}

// NewStream validates credentials with a one-record probe and returns a
// stream positioned before the first row. A credential failure aborts before
// any row is yielded.
func NewStream(ctx context.Context, client *hubspot.Client, cfg StreamConfig) (*Stream, error) {
	if cfg.TenantID == "" {
		cfg.TenantID = "default"
	}
	if len(cfg.Properties) == 0 {
		cfg.Properties = DefaultProperties
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = hubspot.MaxPageSize
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = DefaultCheckpointEvery
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}

	if err := client.VerifyCredentials(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scanID := cfg.ScanID
	if scanID == "" {
		scanID = fmt.Sprintf("scan_%s", now.Format("20060102_150405"))
	}

	logger := log.With().
		Str("component", "extract-stream").
		Str("tenant_id", cfg.TenantID).
		Str("scan_id", scanID).
		Logger()

	logger.Info().
		Int("page_size", cfg.PageSize).
		Bool("archived", cfg.Archived).
		Msg("Extraction stream opened")

	return &Stream{
		client: client,
		pages: NewPageIterator(client, hubspot.DealsQuery{
			Limit:      cfg.PageSize,
			Properties: cfg.Properties,
			Archived:   cfg.Archived,
		}),
		config:      cfg,
		logger:      logger,
		ctx:         ctx,
		scanID:      scanID,
		extractedAt: now,
	}, nil
}

// Next advances to the next row. It returns false when the stream is
// exhausted or failed; check Err to distinguish. Exhaustion and failure both
// release the underlying client.
func (s *Stream) Next() bool {
	if s.err != nil || s.closed {
		return false
	}

	for len(s.buffer) == 0 {
		if !s.pages.Next(s.ctx) {
			if err := s.pages.Err(); err != nil {
				s.err = fmt.Errorf("fetch page after %d rows: %w", s.count, err)
				s.config.Observer.OnError(s.err)
			}
			s.release()
			return false
		}

		page := s.pages.Page()
		s.buffer = make([]Row, 0, len(page))
		for _, deal := range page {
			s.buffer = append(s.buffer, Transform(deal, s.config.TenantID, s.scanID, s.extractedAt))
		}
	}

	s.row = s.buffer[0]
	s.buffer = s.buffer[1:]
	s.count++
	extractRowsTotal.WithLabelValues(s.config.TenantID).Inc()

	if s.count%s.config.CheckpointEvery == 0 {
		extractCheckpointsTotal.Inc()
		s.config.Observer.OnProgress(s.count)
	}

	return true
}

// Row returns the current row. Valid only after a true Next.
func (s *Stream) Row() Row {
	return s.row
}

// Err returns the error that terminated the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Count returns the number of rows yielded so far.
func (s *Stream) Count() int {
	return s.count
}

// ScanID returns the scan identifier for this stream.
func (s *Stream) ScanID() string {
	return s.scanID
}

// ExtractedAt returns the extraction timestamp stamped on every row.
func (s *Stream) ExtractedAt() time.Time {
	return s.extractedAt
}

// Close releases the underlying client session. Safe to call more than once
// and after natural exhaustion.
func (s *Stream) Close() error {
	s.release()
	return nil
}

func (s *Stream) release() {
	if s.closed {
		return
	}
	s.closed = true
	if err := s.client.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Closing client session failed")
	}
	s.logger.Info().Int("rows", s.count).Msg("Extraction stream closed")
}

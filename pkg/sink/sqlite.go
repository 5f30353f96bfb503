package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/crmsync/hubspot-deals-etl/pkg/extract"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

// Prometheus metrics for sink operations.
var (
	sinkRowsLoadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etl_rows_loaded_total",
		Help: "Total rows upserted into the sink",
	})

	sinkBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_load_batches_total",
		Help: "Total load batches by outcome",
	}, []string{"outcome"})
)

const schema = `CREATE TABLE IF NOT EXISTS deals (
	deal_id                  TEXT PRIMARY KEY,
	deal_name                TEXT,
	amount                   REAL,
	currency                 TEXT NOT NULL DEFAULT 'USD',
	dealstage                TEXT,
	dealtype                 TEXT,
	pipeline                 TEXT,
	description              TEXT,
	owner_id                 TEXT,
	num_associated_contacts  INTEGER NOT NULL DEFAULT 0,
	num_associated_companies INTEGER NOT NULL DEFAULT 0,
	hs_forecast_amount       REAL,
	hs_forecast_probability  REAL,
	archived                 INTEGER NOT NULL DEFAULT 0,
	hs_is_closed_won         INTEGER,
	hs_is_closed_lost        INTEGER,
	hs_priority              TEXT,
	close_date               TEXT,
	createdate               TEXT,
	hs_lastmodifieddate      TEXT,
	created_at               TEXT,
	updated_at               TEXT,
	raw_properties           TEXT,
	tenant_id                TEXT NOT NULL,
	scan_id                  TEXT NOT NULL,
	source_system            TEXT NOT NULL,
	api_version              TEXT NOT NULL,
	extracted_at             TEXT NOT NULL,
	is_deleted               INTEGER NOT NULL DEFAULT 0
)`

const upsertStmt = `INSERT INTO deals (
	deal_id, deal_name, amount, currency, dealstage, dealtype, pipeline,
	description, owner_id, num_associated_contacts, num_associated_companies,
	hs_forecast_amount, hs_forecast_probability, archived, hs_is_closed_won,
	hs_is_closed_lost, hs_priority, close_date, createdate,
	hs_lastmodifieddate, created_at, updated_at, raw_properties, tenant_id,
	scan_id, source_system, api_version, extracted_at, is_deleted
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(deal_id) DO UPDATE SET
	deal_name                = excluded.deal_name,
	amount                   = excluded.amount,
	currency                 = excluded.currency,
	dealstage                = excluded.dealstage,
	dealtype                 = excluded.dealtype,
	pipeline                 = excluded.pipeline,
	description              = excluded.description,
	owner_id                 = excluded.owner_id,
	num_associated_contacts  = excluded.num_associated_contacts,
	num_associated_companies = excluded.num_associated_companies,
	hs_forecast_amount       = excluded.hs_forecast_amount,
	hs_forecast_probability  = excluded.hs_forecast_probability,
	archived                 = excluded.archived,
	hs_is_closed_won         = excluded.hs_is_closed_won,
	hs_is_closed_lost        = excluded.hs_is_closed_lost,
	hs_priority              = excluded.hs_priority,
	close_date               = excluded.close_date,
	createdate               = excluded.createdate,
	hs_lastmodifieddate      = excluded.hs_lastmodifieddate,
	created_at               = excluded.created_at,
	updated_at               = excluded.updated_at,
	raw_properties           = excluded.raw_properties,
	tenant_id                = excluded.tenant_id,
	scan_id                  = excluded.scan_id,
	source_system            = excluded.source_system,
	api_version              = excluded.api_version,
	extracted_at             = excluded.extracted_at,
	is_deleted               = excluded.is_deleted`

// SQLite is a Sink backed by an embedded SQLite database. Each Upsert batch
// runs in one transaction: the batch either lands in full or not at all.
type SQLite struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenSQLite opens (and if needed creates) the deals database at the given
// DSN and ensures the schema exists.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite to avoid locking issues.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create deals table: %w", err)
	}

	return &SQLite{
		db:     db,
		logger: log.With().Str("component", "sqlite-sink").Logger(),
	}, nil
}

// Upsert writes a batch of rows, replacing existing rows with the same
// deal_id in full. Returns a *BatchError on failure.
func (s *SQLite) Upsert(ctx context.Context, rows []extract.Row) (*LoadResult, error) {
	loadID := uuid.NewString()

	if len(rows) == 0 {
		return &LoadResult{LoadID: loadID}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		sinkBatchesTotal.WithLabelValues("error").Inc()
		return nil, &BatchError{LoadID: loadID, Err: fmt.Errorf("begin: %w", err)}
	}

	stmt, err := tx.PrepareContext(ctx, upsertStmt)
	if err != nil {
		_ = tx.Rollback()
		sinkBatchesTotal.WithLabelValues("error").Inc()
		return nil, &BatchError{LoadID: loadID, Err: fmt.Errorf("prepare: %w", err)}
	}
	defer stmt.Close()

	for _, row := range rows {
		rawJSON, err := json.Marshal(row.RawProperties)
		if err != nil {
			_ = tx.Rollback()
			sinkBatchesTotal.WithLabelValues("error").Inc()
			return nil, &BatchError{LoadID: loadID, Err: fmt.Errorf("marshal raw properties for deal %s: %w", row.DealID, err)}
		}

		if _, err := stmt.ExecContext(ctx,
			row.DealID,
			row.DealName,
			row.Amount,
			row.Currency,
			row.DealStage,
			row.DealType,
			row.Pipeline,
			row.Description,
			row.OwnerID,
			row.NumAssociatedContacts,
			row.NumAssociatedCompanies,
			row.ForecastAmount,
			row.ForecastProbability,
			row.Archived,
			row.IsClosedWon,
			row.IsClosedLost,
			row.Priority,
			row.CloseDate,
			row.CreateDate,
			row.LastModifiedDate,
			row.CreatedAt,
			row.UpdatedAt,
			string(rawJSON),
			row.TenantID,
			row.ScanID,
			row.SourceSystem,
			row.APIVersion,
			row.ExtractedAt,
			row.IsDeleted,
		); err != nil {
			_ = tx.Rollback()
			sinkBatchesTotal.WithLabelValues("error").Inc()
			return nil, &BatchError{LoadID: loadID, Err: fmt.Errorf("upsert deal %s: %w", row.DealID, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		sinkBatchesTotal.WithLabelValues("error").Inc()
		return nil, &BatchError{LoadID: loadID, Err: fmt.Errorf("commit: %w", err)}
	}

	sinkRowsLoadedTotal.Add(float64(len(rows)))
	sinkBatchesTotal.WithLabelValues("ok").Inc()

	s.logger.Debug().
		Str("load_id", loadID).
		Int("rows", len(rows)).
		Msg("Batch upserted")

	return &LoadResult{LoadID: loadID, RowsWritten: len(rows)}, nil
}

// Count returns the number of stored deals (diagnostics and tests).
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM deals").Scan(&n); err != nil {
		return 0, fmt.Errorf("count deals: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

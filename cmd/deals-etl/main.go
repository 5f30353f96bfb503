// Command deals-etl extracts HubSpot deals and loads them into the
// configured destination database with merge-by-deal_id semantics.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/crmsync/hubspot-deals-etl/internal/config"
	"github.com/crmsync/hubspot-deals-etl/internal/pipeline"
	"github.com/crmsync/hubspot-deals-etl/pkg/logging"
	"github.com/crmsync/hubspot-deals-etl/pkg/sink"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	tenantID := flag.String("tenant-id", cfg.TenantID, "Tenant/organization identifier")
	scanType := flag.String("scan-type", string(cfg.ScanType), "Scan type (full or incremental)")
	batchSize := flag.Int("batch-size", cfg.BatchSize, "Number of deals per API request")
	flag.Parse()

	cfg.TenantID = *tenantID
	cfg.ScanType = config.ScanType(*scanType)
	cfg.BatchSize = *batchSize

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("Pipeline failed")
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		return err
	}

	dst, err := sink.OpenSQLite(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dst.Close()

	summary, err := pipeline.Run(ctx, cfg, dst)
	if err != nil {
		return err
	}

	log.Info().
		Str("scan_id", summary.ScanID).
		Int("rows_extracted", summary.RowsExtracted).
		Int("rows_loaded", summary.RowsLoaded).
		Int("batches", summary.Batches).
		Dur("duration", summary.Duration).
		Msg("Pipeline completed")

	return nil
}

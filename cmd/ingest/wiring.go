package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/banking-pipeline/internal/cache"
	"github.com/andresuchdata/banking-pipeline/internal/config"
	"github.com/andresuchdata/banking-pipeline/internal/ingest"
	"github.com/andresuchdata/banking-pipeline/internal/pipeline"
	"github.com/andresuchdata/banking-pipeline/internal/repository/postgres"
	"github.com/andresuchdata/banking-pipeline/internal/storage"
	"github.com/andresuchdata/banking-pipeline/internal/warehouse"
	"github.com/rs/zerolog/log"
)

type deps struct {
	runner *pipeline.Runner
	closer []func() error
}

func (d *deps) Close() {
	for i := len(d.closer) - 1; i >= 0; i-- {
		if err := d.closer[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

// build wires the runner from configuration. needHandoff is set for the split
// download/load commands.
func build(ctx context.Context, cfg *config.Config, needHandoff bool) (*deps, error) {
	if err := cfg.ValidateDownload(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateSchedule(); err != nil {
		return nil, err
	}

	client, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, err
	}
	downloader := ingest.NewDownloader(client, ingest.DownloadOptions{
		LocalDir: cfg.Ingest.LocalDir,
		Suffix:   cfg.Ingest.Suffix,
		Tables:   cfg.Ingest.Tables,
	})

	d := &deps{}
	opts := []pipeline.Option{}

	if cfg.Handoff.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("handoff store: %w", err)
		}
		d.closer = append(d.closer, rdb.Close)
		opts = append(opts, pipeline.WithHandoff(pipeline.NewRedisHandoffStore(rdb, cfg.Handoff.TTL)))
	} else if needHandoff {
		return nil, errors.New("split download/load runs need HANDOFF_ENABLED=true")
	}

	if cfg.Ledger.Enabled {
		db, err := postgres.NewDB(ctx, cfg.Ledger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closer = append(d.closer, db.Close)

		ledger := pipeline.NewLedger(db)
		if err := ledger.EnsureSchema(ctx); err != nil {
			d.Close()
			return nil, err
		}
		opts = append(opts, pipeline.WithRecorder(ledger))
	}

	policy := pipeline.RetryPolicy{Retries: cfg.Scheduler.Retries, Delay: cfg.Scheduler.RetryDelay}
	d.runner = pipeline.NewRunner(cfg.Ingest.DAGID, downloader, &warehouseLoader{cfg: cfg.Warehouse}, policy, opts...)

	log.Info().
		Str("dag_id", cfg.Ingest.DAGID).
		Str("bucket", cfg.Storage.Bucket).
		Strs("tables", cfg.Ingest.Tables).
		Int("retries", policy.Retries).
		Dur("retry_delay", policy.Delay).
		Bool("handoff", cfg.Handoff.Enabled).
		Bool("ledger", cfg.Ledger.Enabled).
		Msg("Ingest pipeline configured")
	return d, nil
}

// warehouseLoader opens a warehouse session for each load attempt and closes
// it afterwards, so a retry always starts from a fresh connection.
type warehouseLoader struct {
	cfg config.WarehouseConfig
}

func (w *warehouseLoader) Load(ctx context.Context, manifest ingest.Manifest) (ingest.LoadResult, error) {
	// Nothing to stage: the loader only logs, no session needed.
	if len(manifest) == 0 {
		return ingest.NewLoader(nil, nil).Load(ctx, manifest)
	}

	db, err := warehouse.Open(ctx, w.cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	loader := ingest.NewLoader(
		warehouse.NewStager(db, w.cfg.Stage),
		warehouse.NewCopier(db, w.cfg.Stage),
	)
	return loader.Load(ctx, manifest)
}

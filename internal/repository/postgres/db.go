package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

// driverName maps LEDGER_DRIVER onto a registered database/sql driver.
func driverName(driver string) (string, error) {
	switch driver {
	case "", "postgres", "pq":
		return "postgres", nil
	case "pgx":
		return "pgx", nil
	default:
		return "", fmt.Errorf("%w: LEDGER_DRIVER %q is not supported", config.ErrInvalidConfig, driver)
	}
}

// NewDB opens the run ledger connection pool.
func NewDB(ctx context.Context, cfg config.LedgerConfig) (*DB, error) {
	name, err := driverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: LEDGER_DATABASE_URL is required", config.ErrInvalidConfig)
	}

	db, err := sqlx.ConnectContext(ctx, name, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect ledger database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Info().Str("driver", name).Msg("Connected to ledger database")
	return Wrap(db), nil
}

// Wrap adopts an existing handle, mainly for tests.
func Wrap(db *sqlx.DB) *DB {
	return &DB{
		DB:  db,
		sem: semaphore.NewWeighted(4),
	}
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	// Acquire semaphore
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

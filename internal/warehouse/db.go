package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/config"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/snowflakedb/gosnowflake"
)

// DSN renders the gosnowflake connection string for cfg.
func DSN(cfg config.WarehouseConfig) (string, error) {
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Warehouse: cfg.Warehouse,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Role:      cfg.Role,
	})
	if err != nil {
		return "", fmt.Errorf("build snowflake dsn: %w", err)
	}
	return dsn, nil
}

// Open starts a warehouse session and verifies it with a ping. The caller owns the
// returned handle and must Close it.
func Open(ctx context.Context, cfg config.WarehouseConfig) (*sqlx.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snowflake session: %w", err)
	}

	// PUT and COPY must run on one session, one after another.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping snowflake account %s: %w", cfg.Account, err)
	}

	log.Info().
		Str("account", cfg.Account).
		Str("warehouse", cfg.Warehouse).
		Str("database", cfg.Database).
		Str("schema", cfg.Schema).
		Msg("warehouse session opened")

	return db, nil
}

package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Execer is the slice of a database handle the staging and copy steps use.
// *sqlx.DB and *sql.DB satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Stager pushes local files into a named, pre-existing stage.
type Stager struct {
	db    Execer
	stage string
}

func NewStager(db Execer, stage string) *Stager {
	return &Stager{db: db, stage: stage}
}

// Put uploads localPath. The stage is not checked beforehand; a missing stage
// surfaces as the warehouse's own error.
func (s *Stager) Put(ctx context.Context, localPath string) error {
	stmt, err := PutStatement(localPath, s.stage)
	if err != nil {
		return err
	}

	log.Info().Str("stage", s.stage).Str("path", localPath).Msgf("Running: %s", stmt)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("put %s into @%s: %w", localPath, s.stage, err)
	}
	return nil
}

// Copier bulk-loads the whole stage into a table.
type Copier struct {
	db    Execer
	stage string
}

func NewCopier(db Execer, stage string) *Copier {
	return &Copier{db: db, stage: stage}
}

// Copy reads every object currently in the stage, including files left there by
// earlier runs.
func (c *Copier) Copy(ctx context.Context, table string) error {
	stmt, err := CopyStatement(table, c.stage)
	if err != nil {
		return err
	}

	log.Info().Str("table", table).Str("stage", c.stage).Msgf("Running COPY for %s", table)
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("copy into %s from @%s: %w", table, c.stage, err)
	}
	return nil
}

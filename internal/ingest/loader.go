package ingest

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Stager uploads one local file into the warehouse stage.
type Stager interface {
	Put(ctx context.Context, localPath string) error
}

// Copier bulk-loads the stage into a table.
type Copier interface {
	Copy(ctx context.Context, table string) error
}

// TableLoad reports what the load task did for one table.
type TableLoad struct {
	FilesStaged int  `json:"files_staged"`
	Copied      bool `json:"copied"`
}

// LoadResult maps table names to their TableLoad.
type LoadResult map[string]TableLoad

// Statements is the number of PUT and COPY statements issued.
func (r LoadResult) Statements() int {
	n := 0
	for _, t := range r {
		n += t.FilesStaged
		if t.Copied {
			n++
		}
	}
	return n
}

// Loader stages every downloaded file and then copies each table, strictly in order.
type Loader struct {
	stager Stager
	copier Copier
}

func NewLoader(stager Stager, copier Copier) *Loader {
	return &Loader{stager: stager, copier: copier}
}

// Load stops at the first failed statement and returns its error; statements
// already issued are not undone.
func (l *Loader) Load(ctx context.Context, manifest Manifest) (LoadResult, error) {
	result := make(LoadResult)
	if len(manifest) == 0 {
		log.Info().Msg("No files received from Task 1.")
		return result, nil
	}

	for _, table := range manifest.Tables() {
		files := manifest[table]
		if len(files) == 0 {
			log.Info().Str("table", table).Msgf("No files to load for %s", table)
			result[table] = TableLoad{}
			continue
		}

		staged := 0
		for _, f := range files {
			if err := l.stager.Put(ctx, f); err != nil {
				result[table] = TableLoad{FilesStaged: staged}
				return result, err
			}
			staged++
		}

		if err := l.copier.Copy(ctx, table); err != nil {
			result[table] = TableLoad{FilesStaged: staged}
			return result, err
		}
		result[table] = TableLoad{FilesStaged: staged, Copied: true}
	}

	return result, nil
}

package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/banking-pipeline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	statements []string
	err        error
}

func (r *recordingExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	r.statements = append(r.statements, query)
	if r.err != nil {
		return nil, r.err
	}
	return driverResult(0), nil
}

type driverResult int64

func (r driverResult) LastInsertId() (int64, error) { return 0, nil }
func (r driverResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"TRANSACTIONS", "raw_data", "BANKING_DB.BRONZE.TRANSACTIONS", "MINIO_STAGE", "t$1"} {
		assert.NoError(t, ValidateIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "1abc", "x; DROP TABLE y", "a.b.c.d", "\"quoted\"", "a b"} {
		assert.ErrorIs(t, ValidateIdentifier(bad), ErrInvalidIdentifier, bad)
	}
}

func TestPutStatement(t *testing.T) {
	stmt, err := PutStatement("/tmp/minio_downloads/tx_001.json", "MINIO_STAGE")
	require.NoError(t, err)
	assert.Equal(t, "PUT file:///tmp/minio_downloads/tx_001.json @MINIO_STAGE AUTO_COMPRESS=FALSE", stmt)

	stmt, err = PutStatement("/tmp/with space/a.json", "MINIO_STAGE")
	require.NoError(t, err)
	assert.Equal(t, "PUT 'file:///tmp/with space/a.json' @MINIO_STAGE AUTO_COMPRESS=FALSE", stmt)

	_, err = PutStatement("/tmp/a.json", "bad stage")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestPutStatementResolvesRelativePaths(t *testing.T) {
	stmt, err := PutStatement("a.json", "MINIO_STAGE")
	require.NoError(t, err)

	abs, err := filepath.Abs("a.json")
	require.NoError(t, err)
	assert.Contains(t, stmt, filepath.ToSlash(abs))
}

func TestCopyStatementContinuesOnError(t *testing.T) {
	stmt, err := CopyStatement("TRANSACTIONS", "MINIO_STAGE")
	require.NoError(t, err)
	assert.Equal(t,
		"COPY INTO TRANSACTIONS (raw_data) FROM (SELECT $1 FROM @MINIO_STAGE) FILE_FORMAT = (TYPE = 'JSON') ON_ERROR = 'CONTINUE'",
		stmt,
	)

	_, err = CopyStatement("TRANSACTIONS; DROP TABLE X", "MINIO_STAGE")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestStagerAndCopier(t *testing.T) {
	db := &recordingExecer{}
	ctx := context.Background()

	require.NoError(t, NewStager(db, "MINIO_STAGE").Put(ctx, "/data/a.json"))
	require.NoError(t, NewCopier(db, "MINIO_STAGE").Copy(ctx, "TRANSACTIONS"))

	require.Len(t, db.statements, 2)
	assert.Contains(t, db.statements[0], "PUT file:///data/a.json @MINIO_STAGE")
	assert.Contains(t, db.statements[1], "COPY INTO TRANSACTIONS")
}

func TestStagerPropagatesWarehouseErrors(t *testing.T) {
	db := &recordingExecer{err: errors.New("Stage 'MINIO_STAGE' does not exist")}

	err := NewStager(db, "MINIO_STAGE").Put(context.Background(), "/data/a.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	err = NewCopier(db, "MINIO_STAGE").Copy(context.Background(), "TRANSACTIONS")
	require.Error(t, err)
}

func TestOpenValidatesConfig(t *testing.T) {
	_, err := Open(context.Background(), config.WarehouseConfig{})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestDSN(t *testing.T) {
	dsn, err := DSN(config.WarehouseConfig{
		Account:   "xy12345",
		User:      "loader",
		Password:  "secret",
		Warehouse: "COMPUTE_WH",
		Database:  "BANKING_DB",
		Schema:    "BRONZE",
	})
	require.NoError(t, err)
	assert.Contains(t, dsn, "loader:secret@")
	assert.Contains(t, dsn, "xy12345")
	assert.Contains(t, dsn, "database=BANKING_DB")
	assert.Contains(t, dsn, "schema=BRONZE")
	assert.Contains(t, dsn, "warehouse=COMPUTE_WH")
}

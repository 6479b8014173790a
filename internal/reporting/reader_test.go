package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/andresuchdata/banking-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderTransactions(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	newer := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(TransactionsQuery).WillReturnRows(
		sqlmock.NewRows([]string{"TRANSACTION_DATE", "AMOUNT", "OPERATION", "CUSTOMER_NAME"}).
			AddRow(newer, 100.0, "credit", "Ada Lovelace").
			AddRow(older, 50.0, "debit", "Grace Hopper").
			AddRow(older, nil, nil, nil),
	)

	rows, err := NewReader(db).Transactions(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []domain.Transaction{
		{TransactionDate: newer, Amount: 100, Operation: "credit", CustomerName: "Ada Lovelace"},
		{TransactionDate: older, Amount: 50, Operation: "debit", CustomerName: "Grace Hopper"},
		{TransactionDate: older},
	}, rows)
}

func TestReaderPropagatesQueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(TransactionsQuery).WillReturnError(errors.New("Object 'FACT_TRANSACTIONS' does not exist"))

	_, err = NewReader(db).Transactions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query transactions")
}

func TestReaderQueryOrdersNewestFirst(t *testing.T) {
	assert.Contains(t, TransactionsQuery, "JOIN dim_customers c ON t.account_id = c.account_id")
	assert.Contains(t, TransactionsQuery, "ORDER BY t.transaction_date DESC")
}

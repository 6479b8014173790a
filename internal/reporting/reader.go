package reporting

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andresuchdata/banking-pipeline/internal/domain"
	"github.com/rs/zerolog/log"
)

// TransactionsQuery joins the transaction fact with the customer dimension, newest first.
const TransactionsQuery = `
    SELECT
        t.transaction_date,
        t.amount,
        t.operation,
        c.customer_name
    FROM fact_transactions t
    JOIN dim_customers c ON t.account_id = c.account_id
    ORDER BY t.transaction_date DESC
`

// Querier is satisfied by *sql.DB and *sqlx.DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Reader loads the reporting result set from the warehouse.
type Reader struct {
	db Querier
}

func NewReader(db Querier) *Reader {
	return &Reader{db: db}
}

// Transactions runs TransactionsQuery and holds the whole result in memory. NULL
// columns become zero values.
func (r *Reader) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, TransactionsQuery)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			date      sql.NullTime
			amount    sql.NullFloat64
			operation sql.NullString
			customer  sql.NullString
		)
		if err := rows.Scan(&date, &amount, &operation, &customer); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, domain.Transaction{
			TransactionDate: date.Time,
			Amount:          amount.Float64,
			Operation:       operation.String,
			CustomerName:    customer.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	log.Debug().Int("rows", len(out)).Msg("reporting: transactions loaded")
	return out, nil
}

package domain

import "time"

// CreditOperation is the operation value counted as credit volume.
const CreditOperation = "credit"

// Transaction is one row of the fact_transactions / dim_customers join.
type Transaction struct {
	TransactionDate time.Time `json:"transaction_date"`
	Amount          float64   `json:"amount"`
	Operation       string    `json:"operation"`
	CustomerName    string    `json:"customer_name"`
}

// DailyAggregate is the summed amount for one calendar day (YYYY-MM-DD, UTC).
type DailyAggregate struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// DashboardMetrics are the headline numbers shown on the dashboard.
type DashboardMetrics struct {
	TotalVolume      float64          `json:"total_volume"`
	TransactionCount int              `json:"transaction_count"`
	CreditVolume     float64          `json:"credit_volume"`
	Daily            []DailyAggregate `json:"daily"`
}

// Dashboard is everything one page render needs.
type Dashboard struct {
	Metrics      DashboardMetrics `json:"metrics"`
	Transactions []Transaction    `json:"transactions"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

package reporting

import (
	"sort"

	"github.com/andresuchdata/banking-pipeline/internal/domain"
)

const unknownDay = "unknown"

// Aggregate computes the dashboard metrics over the full result set.
func Aggregate(rows []domain.Transaction) domain.DashboardMetrics {
	metrics := domain.DashboardMetrics{
		TransactionCount: len(rows),
		Daily:            make([]domain.DailyAggregate, 0),
	}

	byDay := make(map[string]float64)
	for _, row := range rows {
		metrics.TotalVolume += row.Amount
		if row.Operation == domain.CreditOperation {
			metrics.CreditVolume += row.Amount
		}
		byDay[dayKey(row)] += row.Amount
	}

	for day, amount := range byDay {
		metrics.Daily = append(metrics.Daily, domain.DailyAggregate{Date: day, Amount: amount})
	}
	sort.Slice(metrics.Daily, func(i, j int) bool {
		return metrics.Daily[i].Date < metrics.Daily[j].Date
	})

	return metrics
}

// Head returns at most n leading rows.
func Head(rows []domain.Transaction, n int) []domain.Transaction {
	if n < 0 {
		n = 0
	}
	if len(rows) <= n {
		return rows
	}
	return rows[:n]
}

func dayKey(row domain.Transaction) string {
	if row.TransactionDate.IsZero() {
		return unknownDay
	}
	return row.TransactionDate.UTC().Format("2006-01-02")
}

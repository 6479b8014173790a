package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/domain"
	"github.com/andresuchdata/banking-pipeline/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	rows []domain.Transaction
	err  error
}

func (s *stubReader) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.rows, s.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(reader service.TransactionReader, origins ...string) *gin.Engine {
	svc := service.NewDashboardService(reader, nil, 100)
	return NewRouter(&Services{DashboardService: svc}, origins)
}

func exampleRows() []domain.Transaction {
	d := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	return []domain.Transaction{
		{TransactionDate: d, Amount: 100, Operation: "credit", CustomerName: "Ana"},
		{TransactionDate: d.Add(-24 * time.Hour), Amount: 50, Operation: "debit", CustomerName: "Budi"},
	}
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(NewRouter(nil, nil), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGetDashboardJSON(t *testing.T) {
	w := get(newTestRouter(&stubReader{rows: exampleRows()}), "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 150.0, got.Metrics.TotalVolume)
	assert.Equal(t, 2, got.Metrics.TransactionCount)
	assert.Equal(t, 100.0, got.Metrics.CreditVolume)
	assert.Equal(t, []domain.DailyAggregate{
		{Date: "2025-01-01", Amount: 50},
		{Date: "2025-01-02", Amount: 100},
	}, got.Metrics.Daily)
	assert.Len(t, got.Transactions, 2)
}

func TestGetDashboardRefresh(t *testing.T) {
	w := get(newTestRouter(&stubReader{rows: exampleRows()}), "/api/v1/dashboard?refresh=true")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetDashboardError(t *testing.T) {
	w := get(newTestRouter(&stubReader{err: errors.New("warehouse offline")}), "/api/v1/dashboard")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "failed to fetch dashboard")
}

func TestGetDaily(t *testing.T) {
	w := get(newTestRouter(&stubReader{rows: exampleRows()}), "/api/v1/dashboard/daily")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"daily":[{"date":"2025-01-01","amount":50},{"date":"2025-01-02","amount":100}]}`, w.Body.String())
}

func TestGetTransactionsLimit(t *testing.T) {
	router := newTestRouter(&stubReader{rows: exampleRows()})

	w := get(router, "/api/v1/dashboard/transactions?limit=1")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Items []domain.Transaction `json:"items"`
		Total int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Ana", body.Items[0].CustomerName)
	assert.Equal(t, 2, body.Total)

	w = get(router, "/api/v1/dashboard/transactions?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTransactionsRejectsLimitAboveRowLimit(t *testing.T) {
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := make([]domain.Transaction, 150)
	for i := range rows {
		rows[i] = domain.Transaction{TransactionDate: base, Amount: 1, Operation: "debit", CustomerName: "Dewi"}
	}
	router := newTestRouter(&stubReader{rows: rows})

	w := get(router, "/api/v1/dashboard/transactions?limit=150")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "limit must not exceed 100")

	w = get(router, "/api/v1/dashboard/transactions")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Items []domain.Transaction `json:"items"`
		Total int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Items, 100)
	assert.Equal(t, 150, body.Total)
}

func TestGetPage(t *testing.T) {
	w := get(newTestRouter(&stubReader{rows: exampleRows()}), "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Executive Banking Dashboard")
	assert.Contains(t, w.Body.String(), "$150.00")
}

func TestGetPageError(t *testing.T) {
	w := get(newTestRouter(&stubReader{err: errors.New("boom")}), "/")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetChart(t *testing.T) {
	w := get(newTestRouter(&stubReader{rows: exampleRows()}), "/chart")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2025-01-01")
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	router := newTestRouter(&stubReader{}, "https://bank.example.com")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://bank.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://bank.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"https://a.example.com, https://b.example.com", " "})
	assert.False(t, all)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}

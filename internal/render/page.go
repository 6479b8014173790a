package render

import (
	"html/template"
	"io"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/domain"
)

const PageTitle = "Executive Banking Dashboard"

var pageTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"currency": Currency,
	"count":    Count,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04:05")
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #1f2933; }
.metrics { display: flex; gap: 1rem; margin-bottom: 1.5rem; }
.metric { flex: 1; border: 1px solid #d9e2ec; border-radius: 6px; padding: 1rem; }
.metric .label { font-size: 0.85rem; color: #627d98; }
.metric .value { font-size: 1.6rem; font-weight: 600; }
iframe { width: 100%; height: 400px; border: 0; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid #e4e7eb; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="metrics">
  <div class="metric"><div class="label">Total Transaction Volume</div><div class="value">{{currency .Metrics.TotalVolume}}</div></div>
  <div class="metric"><div class="label">Total Transactions</div><div class="value">{{count .Metrics.TransactionCount}}</div></div>
  <div class="metric"><div class="label">Credit Volume</div><div class="value">{{currency .Metrics.CreditVolume}}</div></div>
</div>
<h2>Daily Transaction Volume</h2>
<iframe src="{{.ChartURL}}" title="Daily Transaction Volume"></iframe>
<h2>Recent Transactions</h2>
{{if .Transactions}}
<table>
  <thead><tr><th>Transaction Date</th><th>Amount</th><th>Operation</th><th>Customer Name</th></tr></thead>
  <tbody>
  {{range .Transactions}}<tr><td>{{date .TransactionDate}}</td><td>{{currency .Amount}}</td><td>{{.Operation}}</td><td>{{.CustomerName}}</td></tr>
  {{end}}
  </tbody>
</table>
{{else}}
<p>No transactions found.</p>
{{end}}
<p><small>Generated {{date .GeneratedAt}} UTC</small></p>
</body>
</html>
`))

type pageData struct {
	Title    string
	ChartURL string
	*domain.Dashboard
}

// Page writes the dashboard HTML. chartURL is where the daily chart is served.
func Page(w io.Writer, dashboard *domain.Dashboard, chartURL string) error {
	return pageTemplate.Execute(w, pageData{
		Title:     PageTitle,
		ChartURL:  chartURL,
		Dashboard: dashboard,
	})
}

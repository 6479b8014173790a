package render

import (
	"io"

	"github.com/andresuchdata/banking-pipeline/internal/domain"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const dailyChartTitle = "Daily Transaction Volume"

// DailyBarChart plots the summed amount per day, oldest day first.
func DailyBarChart(daily []domain.DailyAggregate) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: dailyChartTitle,
			Width:     "100%",
			Height:    "360px",
		}),
		charts.WithTitleOpts(opts.Title{Title: dailyChartTitle}),
	)

	days := make([]string, 0, len(daily))
	values := make([]opts.BarData, 0, len(daily))
	for _, d := range daily {
		days = append(days, d.Date)
		values = append(values, opts.BarData{Value: d.Amount})
	}

	bar.SetXAxis(days).AddSeries("Amount", values)
	return bar
}

// Chart writes the daily bar chart as a standalone HTML page.
func Chart(w io.Writer, daily []domain.DailyAggregate) error {
	return DailyBarChart(daily).Render(w)
}

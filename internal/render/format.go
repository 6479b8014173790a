package render

import (
	"github.com/dustin/go-humanize"
)

// Currency formats an amount as dollars with thousands separators and two decimals.
func Currency(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// Count formats an integer with thousands separators.
func Count(n int) string {
	return humanize.Comma(int64(n))
}

package dashboard

import (
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatBalance 余额：千分位分组，最多 3 位小数，例如 $1,234.5
func FormatBalance(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "$0"
	}
	rounded := decimal.NewFromFloat(v).Round(3).InexactFloat64()
	return "$" + humanize.Commaf(rounded)
}

// FormatMoney 金额绝对值保留两位小数，例如 $8.50
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "$0.00"
	}
	return "$" + decimal.NewFromFloat(v).Abs().StringFixed(2)
}

// FormatNumber 最短表示，62 -> "62"，62.5 -> "62.5"
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatPercent 例如 "62.5%"
func FormatPercent(v float64) string {
	return FormatNumber(v) + "%"
}

// FormatConfidence 例如 "81% Confianza"
func FormatConfidence(v float64) string {
	return FormatPercent(v) + " Confianza"
}

package tax

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits of the billing currency.
const Precision = 3

// Round rounds x half away from zero to the currency precision.
// NaN and infinities are returned unchanged.
func Round(x float64) float64 {
	if !finite(x) {
		return x
	}
	return decimal.NewFromFloat(x).Round(Precision).InexactFloat64()
}

// Format renders x with exactly Precision fractional digits, e.g. "126.000".
func Format(x float64) string {
	if !finite(x) {
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return decimal.NewFromFloat(x).StringFixed(Precision)
}

// FormatMoney renders x followed by the currency code.
func FormatMoney(x float64, currency string) string {
	if currency == "" {
		return Format(x)
	}
	return Format(x) + " " + currency
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

package payments

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// unitsToCents converts a currency-unit amount such as "250.50" to cents,
// rounding half away from zero.
func unitsToCents(value string) (int64, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return d.Mul(hundred).Round(0).IntPart(), true
}

// centsToUnits renders cents as a two-decimal currency string.
func centsToUnits(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// amountFromUnits reads a JSON value expressed in currency units.
func amountFromUnits(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		return unitsToCents(n.String())
	case string:
		return unitsToCents(n)
	case float64:
		return decimal.NewFromFloat(n).Mul(hundred).Round(0).IntPart(), true
	case int64:
		return n * 100, true
	}
	return 0, false
}

// amountFromMixed reads a JSON value where integers are already cents and
// decimals are currency units.
func amountFromMixed(v any) (int64, bool) {
	var raw string
	switch n := v.(type) {
	case json.Number:
		raw = n.String()
	case string:
		raw = strings.TrimSpace(n)
	case float64:
		raw = decimal.NewFromFloat(n).String()
	case int64:
		return n, true
	default:
		return 0, false
	}
	if strings.ContainsAny(raw, ".eE") {
		return unitsToCents(raw)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, false
	}
	return d.Round(0).IntPart(), true
}

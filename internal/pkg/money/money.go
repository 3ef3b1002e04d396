// Package money provides integer arithmetic over amounts expressed in the
// smallest currency unit. Percentages are applied with standard
// half-away-from-zero rounding.
package money

import "math"

// Percent returns pct% of amount, rounded to the nearest unit.
func Percent(amount int64, pct int) int64 {
	return int64(math.Round(float64(amount) * float64(pct) / 100))
}

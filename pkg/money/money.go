// Package money holds the rounding rules for rupee amounts.
package money

import "math"

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percent returns pct percent of v, rounded to two decimal places.
func Percent(v, pct float64) float64 {
	return Round2(v * pct / 100)
}

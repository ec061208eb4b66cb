package utils

import "math"

// Round rounds x to the given number of decimal places (half away from zero).
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// Package metrics holds the small numeric helpers shared by the analytics
// engine and the roster catalogue.
package metrics

import "math"

// Number is any value that can be averaged: shift counts, hours or scores.
type Number interface {
	~int | ~int64 | ~float64
}

// Mean is the arithmetic mean of values, or 0 when there are none.
func Mean[T Number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// Variance is the population variance of values, or 0 when there are none.
func Variance[T Number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := float64(v) - m
		sumSq += d * d
	}
	return sumSq / float64(len(values))
}

// StdDev is the population standard deviation of values.
func StdDev[T Number](values []T) float64 {
	return math.Sqrt(Variance(values))
}

// Ratio returns part/whole, or 0 when whole is not positive.
func Ratio(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

// Percent returns round(part/whole*100), or 0 when whole is not positive.
// The result is always within [0, 100] for 0 <= part <= whole.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round2 rounds v to two decimal places for display and storage.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

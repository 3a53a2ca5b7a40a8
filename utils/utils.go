// Package utils holds small date and float helpers shared across packages.
package utils

import (
	"math"
	"sort"
	"time"
)

// SortDates sorts a slice of time.Time in ascending order.
func SortDates(dates []time.Time) {
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
}

// Days returns the day count between two dates.
func Days(start, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}

// ParseDate converts YYYY-MM-DD to time.Time.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// MinMax returns the smallest and largest element of a non-empty slice.
func MinMax(values []float64) (float64, float64) {
	min, max := math.MaxFloat64, -math.MaxFloat64
	for _, v := range values {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return min, max
}

// RoundTo rounds a float to the specified decimal places.
func RoundTo(val float64, decimals uint32) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}

// Package inflation models a dated price-level curve and exposes the
// deflator series that the cashflow engine consumes. Inflation yields and
// price levels convert both ways; a deflator is the price level normalized
// to 1 at a basis date.
package inflation

import (
	"fmt"
	"time"

	"github.com/meenmo/tvm/calendar"
	"github.com/meenmo/tvm/rate"
)

// Curve is an ascending dated series of per-period inflation yields with
// the price level they imply, normalized to 1 at the first date.
type Curve struct {
	dates     []time.Time
	inflation []float64
	levels    []float64
}

// FromConstant builds a curve at the inflation rate's own periodicity,
// stepping backward from end until start is passed. The end date anchors
// the grid; start itself appears only when the step lands on it exactly.
func FromConstant(start, end time.Time, infl rate.Rate) (*Curve, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("inflation.FromConstant: %w: start %s not before end %s",
			calendar.ErrInvalidDateRange, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	step, err := infl.Freq.Months()
	if err != nil {
		return nil, fmt.Errorf("inflation.FromConstant: %w", err)
	}

	var dates []time.Time
	for back := 0; ; back += step {
		d := calendar.SameOrLastDayInMonths(end, -back)
		if !d.After(start) {
			break
		}
		dates = append(dates, d)
	}
	// reverse into ascending order
	for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
		dates[i], dates[j] = dates[j], dates[i]
	}

	yields := make([]float64, len(dates))
	for i := range yields {
		yields[i] = infl.Value
	}
	return FromInflation(dates, yields)
}

// FromInflation builds a curve from dated inflation yields.
func FromInflation(dates []time.Time, yields []float64) (*Curve, error) {
	if len(dates) == 0 || len(dates) != len(yields) {
		return nil, fmt.Errorf("inflation.FromInflation: %w: %d dates for %d yields",
			rate.ErrDomain, len(dates), len(yields))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i-1].Before(dates[i]) {
			return nil, fmt.Errorf("inflation.FromInflation: %w: dates not strictly ascending",
				calendar.ErrInvalidDateRange)
		}
	}
	c := &Curve{
		dates:     append([]time.Time(nil), dates...),
		inflation: append([]float64(nil), yields...),
	}
	c.levels = levelsFromYields(c.inflation)
	return c, nil
}

// FromPriceLevels builds a curve from an observed price-level series; the
// per-period inflation is the level's percentage change, so the first
// observation carries a zero yield.
func FromPriceLevels(dates []time.Time, levels []float64) (*Curve, error) {
	if len(levels) == 0 || len(dates) != len(levels) {
		return nil, fmt.Errorf("inflation.FromPriceLevels: %w: %d dates for %d levels",
			rate.ErrDomain, len(dates), len(levels))
	}
	yields := make([]float64, len(levels))
	for i := 1; i < len(levels); i++ {
		if levels[i-1] == 0 {
			return nil, fmt.Errorf("inflation.FromPriceLevels: %w: zero level at %d", rate.ErrDomain, i-1)
		}
		yields[i] = levels[i]/levels[i-1] - 1
	}
	return FromInflation(dates, yields)
}

// InflationFromYields derives implied inflation from paired nominal and
// real yield series: (1+nominal)/(1+real) − 1.
func InflationFromYields(nominal, real []float64) ([]float64, error) {
	if len(nominal) != len(real) {
		return nil, fmt.Errorf("inflation.InflationFromYields: %w: length mismatch", rate.ErrDomain)
	}
	out := make([]float64, len(nominal))
	for i := range nominal {
		if real[i] == -1 {
			return nil, fmt.Errorf("inflation.InflationFromYields: %w: real yield of -100%%", rate.ErrDomain)
		}
		out[i] = (1+nominal[i])/(1+real[i]) - 1
	}
	return out, nil
}

func levelsFromYields(yields []float64) []float64 {
	levels := make([]float64, len(yields))
	acc := 1.0
	for i, y := range yields {
		acc *= 1 + y
		levels[i] = acc
	}
	if len(levels) > 0 && levels[0] != 0 {
		norm := levels[0]
		for i := range levels {
			levels[i] /= norm
		}
	}
	return levels
}

// Dates returns a copy of the curve's date grid.
func (c *Curve) Dates() []time.Time {
	return append([]time.Time(nil), c.dates...)
}

// Inflation returns a copy of the per-period inflation yields.
func (c *Curve) Inflation() []float64 {
	return append([]float64(nil), c.inflation...)
}

// PriceLevels returns the price-level series, normalized to 1 at the first
// date.
func (c *Curve) PriceLevels() []float64 {
	return append([]float64(nil), c.levels...)
}

// Len returns the number of curve points.
func (c *Curve) Len() int { return len(c.dates) }

func (c *Curve) String() string {
	if len(c.dates) == 0 {
		return "InflationCurve: empty"
	}
	return fmt.Sprintf("InflationCurve: (%s, %s) with %d rows",
		c.dates[0].Format("2006-01-02"),
		c.dates[len(c.dates)-1].Format("2006-01-02"),
		len(c.dates))
}

// DeflatorValues returns the price level renormalized to 1 at the basis
// date, aligned 1:1 to the curve's dates, in the form the cashflow engine's
// DeflateFromCurve expects. The basis must be one of the curve's dates.
func (c *Curve) DeflatorValues(basis time.Time) ([]float64, error) {
	basisIdx := -1
	for i, d := range c.dates {
		if d.Equal(basis) {
			basisIdx = i
			break
		}
	}
	if basisIdx < 0 {
		return nil, fmt.Errorf("DeflatorValues: %w: basis %s is not a curve date",
			calendar.ErrInvalidDateRange, basis.Format("2006-01-02"))
	}
	norm := c.levels[basisIdx]
	out := make([]float64, len(c.levels))
	for i, l := range c.levels {
		out[i] = l / norm
	}
	return out, nil
}

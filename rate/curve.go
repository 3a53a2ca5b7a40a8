package rate

import (
	"fmt"
	"math"
)

// Curve is a non-constant sequence of per-period yields under one regime,
// used to compound or discount step by step instead of with a constant rate.
type Curve struct {
	yields []float64
	regime Regime
}

// NewCurve builds a curve from an ordered yield sequence.
func NewCurve(yields []float64, regime Regime) (*Curve, error) {
	if !regime.Valid() {
		return nil, fmt.Errorf("NewCurve: %w: %q", ErrInvalidRegime, regime)
	}
	if len(yields) == 0 {
		return nil, fmt.Errorf("NewCurve: %w: empty yield sequence", ErrDomain)
	}
	return &Curve{yields: append([]float64(nil), yields...), regime: regime}, nil
}

// CurveFromFutureValues infers per-period yields from an observed value
// series: successive growth ratios for compound, increments over the first
// value for simple, log differences for continuous. The resulting curve has
// one yield fewer than the input has observations.
func CurveFromFutureValues(values []float64, regime Regime) (*Curve, error) {
	if !regime.Valid() {
		return nil, fmt.Errorf("CurveFromFutureValues: %w: %q", ErrInvalidRegime, regime)
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("CurveFromFutureValues: %w: need at least two observations", ErrDomain)
	}
	yields := make([]float64, len(values)-1)
	first := values[0]
	for i := 1; i < len(values); i++ {
		switch regime {
		case Compound:
			if values[i-1] == 0 {
				return nil, fmt.Errorf("CurveFromFutureValues: %w: zero observation", ErrDomain)
			}
			yields[i-1] = (values[i] - values[i-1]) / values[i-1]
		case Simple:
			if first == 0 {
				return nil, fmt.Errorf("CurveFromFutureValues: %w: zero first observation", ErrDomain)
			}
			yields[i-1] = (values[i] - values[i-1]) / first
		case Continuous:
			if first <= 0 || values[i] <= 0 || values[i-1] <= 0 {
				return nil, fmt.Errorf("CurveFromFutureValues: %w: non-positive observation", ErrDomain)
			}
			yields[i-1] = math.Log(values[i]/first) - math.Log(values[i-1]/first)
		}
	}
	return &Curve{yields: yields, regime: regime}, nil
}

func (c *Curve) Regime() Regime { return c.regime }

func (c *Curve) Len() int { return len(c.yields) }

// Yields returns a copy of the per-period yield sequence.
func (c *Curve) Yields() []float64 {
	return append([]float64(nil), c.yields...)
}

// AccumulatedFactors returns the running growth factor after each period:
// the running product of (1+yield) for compound, 1 plus the running yield
// sum for simple, and the exponential of the running sum for continuous.
func (c *Curve) AccumulatedFactors() []float64 {
	factors := make([]float64, len(c.yields))
	switch c.regime {
	case Compound:
		acc := 1.0
		for i, y := range c.yields {
			acc *= 1 + y
			factors[i] = acc
		}
	case Simple:
		sum := 0.0
		for i, y := range c.yields {
			sum += y
			factors[i] = 1 + sum
		}
	case Continuous:
		sum := 0.0
		for i, y := range c.yields {
			sum += y
			factors[i] = math.Exp(sum)
		}
	}
	return factors
}

// FutureValues grows principal through the accumulated factor series.
func (c *Curve) FutureValues(principal float64) []float64 {
	factors := c.AccumulatedFactors()
	for i := range factors {
		factors[i] *= principal
	}
	return factors
}

// FutureValue returns principal grown through the first period+1 yields.
// period indexes from zero.
func (c *Curve) FutureValue(principal float64, period int) (float64, error) {
	if period < 0 || period >= len(c.yields) {
		return 0, fmt.Errorf("FutureValue: %w: period %d outside curve of %d yields",
			ErrDomain, period, len(c.yields))
	}
	return c.FutureValues(principal)[period], nil
}

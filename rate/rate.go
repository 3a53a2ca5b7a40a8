// Package rate models interest rates under the simple, compound and
// continuous regimes, converts between regimes and periodicities, and
// provides the forward/backward equations and annuity formulas built on
// them.
package rate

import (
	"errors"
	"fmt"
	"math"

	"github.com/meenmo/tvm/calendar"
)

// Regime is the compounding convention of a rate.
type Regime string

const (
	Simple     Regime = "simple"
	Compound   Regime = "compound"
	Continuous Regime = "continuous"
)

var (
	ErrInvalidRegime = errors.New("invalid regime")
	// ErrDomain marks inputs outside a formula's domain, e.g. a zero present
	// value fed into DeltaTime.
	ErrDomain = errors.New("input outside formula domain")
	// ErrUnsupported marks formulas a regime does not define, e.g. the level
	// annuity under continuous compounding.
	ErrUnsupported = errors.New("operation undefined for regime")
)

func (r Regime) Valid() bool {
	switch r {
	case Simple, Compound, Continuous:
		return true
	}
	return false
}

// Rate is an interest rate tagged with a periodicity and a compounding
// regime. Rates are immutable values; every conversion returns a new Rate.
type Rate struct {
	Value  float64
	Freq   calendar.Periodicity
	Regime Regime
}

// regimeMath is the per-regime strategy set. Dispatch is by tag, never by
// subtyping; one Rate type, three behaviours.
type regimeMath struct {
	futureValue func(r, pv, dt float64) float64
	deltaTime   func(r, fv, pv float64) (float64, error)
	solve       func(pv, fv, dt float64) (float64, error)
	// convert maps a rate value at a periodicity ratio to the new
	// periodicity (ratio = periodsPerYear(old)/periodsPerYear(new)).
	convert func(r, ratio float64) float64
}

var regimes = map[Regime]regimeMath{
	Compound: {
		futureValue: func(r, pv, dt float64) float64 { return pv * math.Pow(1+r, dt) },
		deltaTime: func(r, fv, pv float64) (float64, error) {
			if pv <= 0 || fv <= 0 {
				return 0, fmt.Errorf("DeltaTime: %w: values must be positive", ErrDomain)
			}
			if 1+r <= 0 || r == 0 {
				return 0, fmt.Errorf("DeltaTime: %w: rate %v has no growth", ErrDomain, r)
			}
			return math.Log(fv/pv) / math.Log(1+r), nil
		},
		solve: func(pv, fv, dt float64) (float64, error) {
			if pv <= 0 || fv <= 0 || dt == 0 {
				return 0, fmt.Errorf("FromEquation: %w", ErrDomain)
			}
			return math.Pow(fv/pv, 1/dt) - 1, nil
		},
		convert: func(r, ratio float64) float64 { return math.Pow(1+r, ratio) - 1 },
	},
	Simple: {
		futureValue: func(r, pv, dt float64) float64 { return pv * (1 + r*dt) },
		deltaTime: func(r, fv, pv float64) (float64, error) {
			if pv == 0 {
				return 0, fmt.Errorf("DeltaTime: %w: zero present value", ErrDomain)
			}
			if r == 0 {
				return 0, fmt.Errorf("DeltaTime: %w: zero rate", ErrDomain)
			}
			return (fv/pv - 1) / r, nil
		},
		solve: func(pv, fv, dt float64) (float64, error) {
			if pv == 0 || dt == 0 {
				return 0, fmt.Errorf("FromEquation: %w", ErrDomain)
			}
			return (fv/pv - 1) / dt, nil
		},
		convert: func(r, ratio float64) float64 { return ratio * r },
	},
	Continuous: {
		futureValue: func(r, pv, dt float64) float64 { return pv * math.Exp(r*dt) },
		deltaTime: func(r, fv, pv float64) (float64, error) {
			if pv <= 0 || fv <= 0 {
				return 0, fmt.Errorf("DeltaTime: %w: values must be positive", ErrDomain)
			}
			if r == 0 {
				return 0, fmt.Errorf("DeltaTime: %w: zero rate", ErrDomain)
			}
			return math.Log(fv/pv) / r, nil
		},
		solve: func(pv, fv, dt float64) (float64, error) {
			if pv <= 0 || fv <= 0 || dt == 0 {
				return 0, fmt.Errorf("FromEquation: %w", ErrDomain)
			}
			return math.Log(fv/pv) / dt, nil
		},
		convert: func(r, ratio float64) float64 { return ratio * r },
	},
}

// New validates and builds a Rate.
func New(value float64, freq calendar.Periodicity, regime Regime) (Rate, error) {
	if !freq.Valid() || freq == calendar.Irregular {
		return Rate{}, fmt.Errorf("rate.New: %w: %q", calendar.ErrInvalidPeriodicity, freq)
	}
	if !regime.Valid() {
		return Rate{}, fmt.Errorf("rate.New: %w: %q", ErrInvalidRegime, regime)
	}
	return Rate{Value: value, Freq: freq, Regime: regime}, nil
}

// NewCompound builds a compound rate without validation; freq must be one of
// the calendar periodicity codes.
func NewCompound(value float64, freq calendar.Periodicity) Rate {
	return Rate{Value: value, Freq: freq, Regime: Compound}
}

func NewSimple(value float64, freq calendar.Periodicity) Rate {
	return Rate{Value: value, Freq: freq, Regime: Simple}
}

func NewContinuous(value float64, freq calendar.Periodicity) Rate {
	return Rate{Value: value, Freq: freq, Regime: Continuous}
}

// FromEquation inverts the regime's future-value formula to recover the rate
// implied by observing presentValue grow to futureValue over deltaTime
// periods.
func FromEquation(presentValue, futureValue, deltaTime float64, freq calendar.Periodicity, regime Regime) (Rate, error) {
	ops, ok := regimes[regime]
	if !ok {
		return Rate{}, fmt.Errorf("FromEquation: %w: %q", ErrInvalidRegime, regime)
	}
	v, err := ops.solve(presentValue, futureValue, deltaTime)
	if err != nil {
		return Rate{}, err
	}
	return New(v, freq, regime)
}

func (r Rate) String() string {
	return fmt.Sprintf("Rate(value=%.4f, freq=%q, regime=%q)", r.Value, r.Freq, r.Regime)
}

func (r Rate) ops() regimeMath {
	return regimes[r.Regime]
}

// FutureValue grows presentValue over deltaTime periods of r's periodicity.
func (r Rate) FutureValue(presentValue, deltaTime float64) float64 {
	return r.ops().futureValue(r.Value, presentValue, deltaTime)
}

// PresentValue discounts futureValue back over deltaTime periods.
func (r Rate) PresentValue(futureValue, deltaTime float64) float64 {
	return futureValue / r.ops().futureValue(r.Value, 1, deltaTime)
}

// DeltaTime solves the regime's growth equation for the elapsed time that
// takes presentValue to futureValue.
func (r Rate) DeltaTime(futureValue, presentValue float64) (float64, error) {
	return r.ops().deltaTime(r.Value, futureValue, presentValue)
}

// Equivalent re-expresses r at a new periodicity so the effective growth
// over one year is unchanged. Bullet carries no periodic meaning and is
// rejected on either side.
func (r Rate) Equivalent(newFreq calendar.Periodicity) (Rate, error) {
	oldPerYear, err := r.Freq.PerYear()
	if err != nil {
		return Rate{}, fmt.Errorf("Equivalent: %w", err)
	}
	newPerYear, err := newFreq.PerYear()
	if err != nil {
		return Rate{}, fmt.Errorf("Equivalent: %w", err)
	}
	ratio := oldPerYear / newPerYear
	return Rate{Value: r.ops().convert(r.Value, ratio), Freq: newFreq, Regime: r.Regime}, nil
}

// ToCompound reinterprets or maps r into the compound regime. Simple rates
// carry their value over unchanged; continuous rates map through e^r − 1.
func (r Rate) ToCompound() Rate {
	switch r.Regime {
	case Continuous:
		return Rate{Value: math.Exp(r.Value) - 1, Freq: r.Freq, Regime: Compound}
	default:
		return Rate{Value: r.Value, Freq: r.Freq, Regime: Compound}
	}
}

// ToSimple reinterprets r into the simple regime; continuous rates go
// through the compound mapping first.
func (r Rate) ToSimple() Rate {
	c := r.ToCompound()
	return Rate{Value: c.Value, Freq: r.Freq, Regime: Simple}
}

// ToContinuous maps r into the continuous regime via ln(1+r).
func (r Rate) ToContinuous() Rate {
	if r.Regime == Continuous {
		return r
	}
	return Rate{Value: math.Log(1 + r.Value), Freq: r.Freq, Regime: Continuous}
}

// normalizePair re-expresses b at a's periodicity, then maps both to the
// compound regime when the regimes differ. Both comparison operands are
// normalized; comparing a value against its own normalization is never
// meaningful.
func normalizePair(a, b Rate) (float64, float64, error) {
	if a.Freq != b.Freq {
		conv, err := b.Equivalent(a.Freq)
		if err != nil {
			return 0, 0, err
		}
		b = conv
	}
	if a.Regime != b.Regime {
		return a.ToCompound().Value, b.ToCompound().Value, nil
	}
	return a.Value, b.Value, nil
}

// Equal reports whether two rates describe the same rate after normalizing
// periodicity and regime.
func Equal(a, b Rate) (bool, error) {
	av, bv, err := normalizePair(a, b)
	if err != nil {
		return false, err
	}
	return av == bv, nil
}

// Less reports whether a grows slower than b after normalization.
func Less(a, b Rate) (bool, error) {
	av, bv, err := normalizePair(a, b)
	if err != nil {
		return false, err
	}
	return av < bv, nil
}

// Greater reports whether a grows faster than b after normalization.
func Greater(a, b Rate) (bool, error) {
	less, err := Less(b, a)
	if err != nil {
		return false, err
	}
	return less, nil
}

// uniformFactor is ((1+r)^n − 1)/r, the level-annuity accumulation factor.
func (r Rate) uniformFactor(periods int) (float64, error) {
	if r.Regime == Continuous {
		return 0, fmt.Errorf("annuity: %w: continuous", ErrUnsupported)
	}
	if r.Value == 0 {
		return 0, fmt.Errorf("annuity: %w: zero rate", ErrDomain)
	}
	return (math.Pow(1+r.Value, float64(periods)) - 1) / r.Value, nil
}

func (r Rate) anticipate(fv, anticipation float64) float64 {
	if anticipation == 0 {
		return fv
	}
	return r.FutureValue(fv, anticipation)
}

// UniformFutureValue accumulates a level payment over the given number of
// periods. anticipation shifts the result in time by compounding it forward
// (or backward, when negative) that many periods.
func (r Rate) UniformFutureValue(payment float64, periods int, anticipation float64) (float64, error) {
	factor, err := r.uniformFactor(periods)
	if err != nil {
		return 0, err
	}
	return r.anticipate(payment*factor, anticipation), nil
}

// ArithmeticGradientFutureValue accumulates a payment series changing by a
// fixed increment each period. The sign of gradient selects between the two
// closed forms; both anticipate identically.
func (r Rate) ArithmeticGradientFutureValue(payment float64, periods int, gradient, anticipation float64) (float64, error) {
	factor, err := r.uniformFactor(periods)
	if err != nil {
		return 0, err
	}
	n := float64(periods)
	var fv float64
	if gradient > 0 {
		fv = (payment / r.Value) * ((1+r.Value)*factor - n)
	} else {
		fv = (payment / r.Value) * (n*math.Pow(1+r.Value, n) - factor)
	}
	return r.anticipate(fv, anticipation), nil
}

// GeometricGradientFutureValue accumulates a payment series growing at a
// fixed rate per period. The continuous regime uses the exponential analog.
func (r Rate) GeometricGradientFutureValue(payment float64, periods int, gradient, anticipation float64) (float64, error) {
	if r.Value == gradient {
		return 0, fmt.Errorf("GeometricGradientFutureValue: %w: rate equals gradient", ErrDomain)
	}
	n := float64(periods)
	var fv float64
	if r.Regime == Continuous {
		fv = payment * (math.Exp(r.Value*n) - math.Exp(gradient*n)) / (r.Value - gradient)
	} else {
		fv = payment * (math.Pow(1+r.Value, n) - math.Pow(1+gradient, n)) / (r.Value - gradient)
	}
	return r.anticipate(fv, anticipation), nil
}

package cashflow

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meenmo/tvm/calendar"
	"github.com/meenmo/tvm/rate"
	"github.com/meenmo/tvm/utils"
	"github.com/meenmo/tvm/value"
)

// discountColumns applies a per-row yield sequence to target: the cumulative
// discount factor is 1/Π(1+yield) and the present value is target × factor.
func (c *Cashflow) discountColumns(target string, yields []float64) error {
	targetCol, ok := c.cols[target]
	if !ok {
		return fmt.Errorf("discount: %w: %q", ErrMissingColumn, target)
	}
	factors := make([]float64, len(yields))
	pv := make([]float64, len(yields))
	acc := 1.0
	for i, y := range yields {
		acc *= 1 + y
		factors[i] = 1 / acc
		pv[i] = targetCol[i] * factors[i]
	}
	c.setColumn(target+"_discount_yield", yields)
	c.setColumn(target+"_discount_factor", factors)
	c.setColumn(target+"_present_value", pv)
	return nil
}

// DiscountConstantRate discounts target with a constant per-period yield.
// The first row's yield is zero since nothing accrues before period 0. The
// rate is applied at face value; callers convert it to the schedule's
// periodicity first.
func (c *Cashflow) DiscountConstantRate(r rate.Rate, target string) (*Cashflow, error) {
	if err := c.requireRegular("DiscountConstantRate"); err != nil {
		return nil, err
	}
	yields := make([]float64, c.Len())
	for i := 1; i < len(yields); i++ {
		yields[i] = r.Value
	}
	if err := c.discountColumns(target, yields); err != nil {
		return nil, fmt.Errorf("DiscountConstantRate: %w", err)
	}
	return c, nil
}

// DiscountFromCurve discounts target with per-row yields supplied by an
// external curve aligned 1:1, in order, to the schedule's rows.
func (c *Cashflow) DiscountFromCurve(curve *rate.Curve, target string) (*Cashflow, error) {
	if err := c.requireRegular("DiscountFromCurve"); err != nil {
		return nil, err
	}
	if curve.Len() != c.Len() {
		return nil, fmt.Errorf("DiscountFromCurve: %w: curve has %d yields for %d rows",
			rate.ErrDomain, curve.Len(), c.Len())
	}
	if err := c.discountColumns(target, curve.Yields()); err != nil {
		return nil, fmt.Errorf("DiscountFromCurve: %w", err)
	}
	return c, nil
}

// NPV sums target's present-value column into a monetary value anchored at
// the schedule's earliest date. When a rate is supplied the schedule is
// discounted with it first; otherwise the column must already exist.
func (c *Cashflow) NPV(target string, discount *rate.Rate) (value.Value, error) {
	if c.Empty() {
		return value.Value{}, fmt.Errorf("NPV: %w: empty schedule", calendar.ErrInvalidDateRange)
	}
	if discount != nil {
		if _, err := c.DiscountConstantRate(*discount, target); err != nil {
			return value.Value{}, fmt.Errorf("NPV: %w", err)
		}
	}
	col, ok := c.cols[target+"_present_value"]
	if !ok {
		return value.Value{}, fmt.Errorf("NPV: %w: %q has no present-value column and no rate was supplied",
			ErrMissingColumn, target)
	}
	sum := 0.0
	for _, v := range col {
		sum += v
	}
	return value.New(sum, c.dates[0]), nil
}

const (
	irrMaxIterations = 100
	irrTolerance     = 1e-10
	irrInitialGuess  = 0.1
)

// irrRoot finds r solving Σ v[i]/(1+r)^i = 0 by Newton-Raphson with a fixed
// iteration cap.
func irrRoot(values []float64) (float64, error) {
	min, max := utils.MinMax(values)
	if min*max >= 0 {
		return 0, fmt.Errorf("irr: %w: cashflow needs at least one inflow and one outflow", rate.ErrDomain)
	}
	r := irrInitialGuess
	for iter := 0; iter < irrMaxIterations; iter++ {
		var f, df float64
		for i, v := range values {
			t := float64(i)
			f += v / math.Pow(1+r, t)
			df -= t * v / math.Pow(1+r, t+1)
		}
		if math.Abs(f) < irrTolerance {
			return r, nil
		}
		if df == 0 {
			return 0, fmt.Errorf("irr: %w: zero derivative at %v", ErrNonConvergent, r)
		}
		next := r - f/df
		if next <= -1 {
			next = (r - 1) / 2 // keep the compounding base positive
		}
		if math.Abs(next-r) < irrTolerance {
			return next, nil
		}
		r = next
	}
	return 0, fmt.Errorf("irr: %w after %d iterations", ErrNonConvergent, irrMaxIterations)
}

// IRR finds the internal rate of return of the target column at the
// schedule's own periodicity and re-expresses it as an Annual compound rate.
func (c *Cashflow) IRR(target string) (rate.Rate, error) {
	if err := c.requireRegular("IRR"); err != nil {
		return rate.Rate{}, err
	}
	p := c.spacing()
	if p == calendar.Bullet {
		return rate.Rate{}, fmt.Errorf("IRR: %w: bullet schedules have no periodic rate", calendar.ErrInvalidPeriodicity)
	}
	values, ok := c.cols[target]
	if !ok {
		return rate.Rate{}, fmt.Errorf("IRR: %w: %q", ErrMissingColumn, target)
	}
	root, err := irrRoot(values)
	if err != nil {
		return rate.Rate{}, fmt.Errorf("IRR: %w", err)
	}
	return rate.NewCompound(root, p).Equivalent(calendar.Annual)
}

// WithholdingSchedule maps elapsed days to a withholding-tax rate. Brackets
// are external configuration, not engine constants.
type WithholdingSchedule interface {
	RateForDays(days int) (float64, error)
}

func roundCents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).RoundBank(2).Float64()
	return f
}

// Tax computes withholding tax on the interest portion of the schedule.
//
// When the principal or interest split is absent it is derived under the
// bullet assumption: the first brutto value is the placed principal, negated
// at the final date, and the remainder is interest. The tax rate for each
// row comes from the elapsed days since the first date; tax and netto are
// rounded to cents.
func (c *Cashflow) Tax(schedule WithholdingSchedule) (*Cashflow, error) {
	if err := c.requireRegular("Tax"); err != nil {
		return nil, err
	}
	brutto, hasBrutto := c.cols[ColBrutto]
	if !hasBrutto {
		return nil, fmt.Errorf("Tax: %w: %q", ErrMissingColumn, ColBrutto)
	}

	principal, hasPrincipal := c.cols[ColPrincipal]
	interest, hasInterest := c.cols[ColInterestPaid]
	switch {
	case hasPrincipal && hasInterest:
	case hasPrincipal:
		interest = make([]float64, c.Len())
		for i := range interest {
			interest[i] = brutto[i] - principal[i]
		}
	case hasInterest:
		principal = make([]float64, c.Len())
		for i := range principal {
			principal[i] = brutto[i] - interest[i]
		}
	default:
		// bullet assumption: first brutto is the placed principal, returned
		// in full at the final date
		n := c.Len()
		principal = make([]float64, n)
		principal[0] = brutto[0]
		principal[n-1] += -brutto[0]
		interest = make([]float64, n)
		for i := range interest {
			interest[i] = brutto[i] - principal[i]
		}
	}

	n := c.Len()
	deltaDays := make([]float64, n)
	taxRates := make([]float64, n)
	tax := make([]float64, n)
	netto := make([]float64, n)
	for i := range c.dates {
		days := utils.Days(c.dates[0], c.dates[i])
		r, err := schedule.RateForDays(days)
		if err != nil {
			return nil, fmt.Errorf("Tax: %w", err)
		}
		deltaDays[i] = float64(days)
		taxRates[i] = r
		tax[i] = roundCents(interest[i] * r)
		netto[i] = roundCents(brutto[i] - tax[i])
	}

	if !hasPrincipal {
		c.setColumn(ColPrincipal, principal)
	}
	if !hasInterest {
		c.setColumn(ColInterestPaid, interest)
	}
	c.setColumn(ColDeltaDays, deltaDays)
	c.setColumn(ColTaxRate, taxRates)
	c.setColumn(ColTax, tax)
	c.setColumn(ColNetto, netto)
	return c, nil
}

// DeflateConstant divides target by a deflator series grown at a constant
// rate over elapsed fractional years, normalized to 1 at the basis date. A
// zero basis uses the schedule's earliest date; the basis must be one of the
// schedule's rows.
func (c *Cashflow) DeflateConstant(r rate.Rate, target string, basis time.Time) (*Cashflow, error) {
	targetCol, ok := c.cols[target]
	if !ok {
		return nil, fmt.Errorf("DeflateConstant: %w: %q", ErrMissingColumn, target)
	}
	if c.Empty() {
		return nil, fmt.Errorf("DeflateConstant: %w: empty schedule", calendar.ErrInvalidDateRange)
	}
	annual := r
	if r.Freq != calendar.Annual {
		conv, err := r.Equivalent(calendar.Annual)
		if err != nil {
			return nil, fmt.Errorf("DeflateConstant: %w", err)
		}
		annual = conv
	}
	if basis.IsZero() {
		basis = c.dates[0]
	}
	basisIdx := -1
	for i, d := range c.dates {
		if d.Equal(basis) {
			basisIdx = i
			break
		}
	}
	if basisIdx < 0 {
		return nil, fmt.Errorf("DeflateConstant: %w: basis %s is not a schedule row",
			calendar.ErrInvalidDateRange, basis.Format("2006-01-02"))
	}

	deflator := make([]float64, c.Len())
	for i, d := range c.dates {
		deflator[i] = math.Pow(1+annual.Value, calendar.DeltaYears(basis, d))
	}
	norm := deflator[basisIdx]
	deflated := make([]float64, c.Len())
	for i := range deflator {
		deflator[i] /= norm
		deflated[i] = targetCol[i] / deflator[i]
	}
	c.setColumn(ColDeflator, deflator)
	c.setColumn(target+"_deflated", deflated)
	return c, nil
}

// DeflateFromCurve divides target by an externally supplied deflator series
// aligned 1:1 to the schedule's rows and already normalized to its basis.
func (c *Cashflow) DeflateFromCurve(deflator []float64, target string) (*Cashflow, error) {
	targetCol, ok := c.cols[target]
	if !ok {
		return nil, fmt.Errorf("DeflateFromCurve: %w: %q", ErrMissingColumn, target)
	}
	if len(deflator) != c.Len() {
		return nil, fmt.Errorf("DeflateFromCurve: %w: deflator has %d values for %d rows",
			rate.ErrDomain, len(deflator), c.Len())
	}
	deflated := make([]float64, c.Len())
	for i, d := range deflator {
		if d == 0 {
			return nil, fmt.Errorf("DeflateFromCurve: %w: zero deflator at row %d", rate.ErrDomain, i)
		}
		deflated[i] = targetCol[i] / d
	}
	c.setColumn(ColDeflator, append([]float64(nil), deflator...))
	c.setColumn(target+"_deflated", deflated)
	return c, nil
}

// summableColumns is the column set Add sums. Columns outside it that are
// present on only one side are dropped; the intersection policy is a
// deliberate, documented limitation.
var summableColumns = []string{ColBrutto, ColInterestPaid, ColPrincipal}

// Add merges two schedules into a new one over the union of their dates,
// summing per date the intersection of the summable columns present on both
// sides. Adding an empty schedule returns a copy of the other operand.
// Neither operand is mutated.
func (c *Cashflow) Add(other *Cashflow) (*Cashflow, error) {
	if c.Empty() {
		return other.Copy(), nil
	}
	if other.Empty() {
		return c.Copy(), nil
	}

	var cols []string
	for _, name := range summableColumns {
		if c.hasColumn(name) && other.hasColumn(name) {
			cols = append(cols, name)
		}
	}

	sums := map[time.Time]map[string]float64{}
	accumulate := func(src *Cashflow) {
		for i, d := range src.dates {
			row, ok := sums[d]
			if !ok {
				row = map[string]float64{}
				sums[d] = row
			}
			for _, name := range cols {
				row[name] += src.cols[name][i]
			}
		}
	}
	accumulate(c)
	accumulate(other)

	dates := make([]time.Time, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	utils.SortDates(dates)

	rows := make([]Row, len(dates))
	for i, d := range dates {
		rows[i] = Row{Date: d, Values: sums[d]}
	}
	return FromRows(rows)
}

// AggToPeriodEnd resamples the schedule onto period-end labels at the given
// periodicity (Monthly, Quarterly or Annual), summing every column within
// each bucket. The schedule is mutated in place.
func (c *Cashflow) AggToPeriodEnd(p calendar.Periodicity) (*Cashflow, error) {
	var label func(t time.Time) time.Time
	switch p {
	case calendar.Monthly:
		label = func(t time.Time) time.Time { return calendar.LastDayInMonths(t, 0) }
	case calendar.Quarterly:
		label = func(t time.Time) time.Time {
			m := ((int(t.Month())-1)/3)*3 + 3
			return calendar.LastDayInMonths(calendar.Date(t.Year(), time.Month(m), 1), 0)
		}
	case calendar.Annual:
		label = func(t time.Time) time.Time { return calendar.Date(t.Year(), time.December, 31) }
	default:
		return nil, fmt.Errorf("AggToPeriodEnd: %w: %q", calendar.ErrInvalidPeriodicity, p)
	}

	sums := map[time.Time]map[string]float64{}
	for i, d := range c.dates {
		l := label(d)
		row, ok := sums[l]
		if !ok {
			row = map[string]float64{}
			sums[l] = row
		}
		for _, name := range c.order {
			row[name] += c.cols[name][i]
		}
	}

	dates := make([]time.Time, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	utils.SortDates(dates)

	order := append([]string(nil), c.order...)
	c.dates = dates
	c.cols = map[string][]float64{}
	c.order = nil
	for _, name := range order {
		col := make([]float64, len(dates))
		for i, d := range dates {
			col[i] = sums[d][name]
		}
		c.setColumn(name, col)
	}
	c.freq = p
	return c, nil
}

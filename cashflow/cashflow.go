// Package cashflow builds date-indexed payment schedules from rate and
// payment specifications and values them: discounting, withholding tax, net
// present value, internal rate of return, deflation and aggregation.
package cashflow

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/meenmo/tvm/calendar"
	"github.com/meenmo/tvm/rate"
)

// Well-known column names. Valuation operations append further columns
// derived from these, named <target>_discount_yield, <target>_discount_factor,
// <target>_present_value and <target>_deflated.
const (
	ColPrincipal    = "principal"
	ColInterestPaid = "interest_paid"
	ColBrutto       = "brutto"
	ColTax          = "tax"
	ColNetto        = "netto"
	ColTaxRate      = "tax_rate"
	ColDeltaDays    = "delta_days"
	ColDeflator     = "deflator"
)

var (
	// ErrMissingColumn is returned when an operation needs a column that was
	// never computed or loaded.
	ErrMissingColumn = errors.New("missing column")
	// ErrNonConvergent is returned when the IRR root-find exhausts its
	// iteration cap.
	ErrNonConvergent = errors.New("root finding did not converge")
)

// Cashflow is an ordered, date-keyed table of payment amounts and derived
// valuation columns. Dates are unique and strictly ascending. Valuation
// operations mutate the receiver in place and return it for chaining; they
// validate before mutating wherever feasible, so a failed call leaves all
// previously computed columns intact.
type Cashflow struct {
	dates []time.Time
	cols  map[string][]float64
	order []string
	freq  calendar.Periodicity
}

// New returns an empty schedule. Adding an empty schedule to another is the
// identity, which makes it the natural zero for aggregation loops.
func New() *Cashflow {
	return &Cashflow{cols: map[string][]float64{}, freq: calendar.Irregular}
}

func (c *Cashflow) String() string {
	if len(c.dates) == 0 {
		return "Cashflow: empty"
	}
	return fmt.Sprintf("Cashflow: from %s to %s with %d rows",
		c.dates[0].Format("2006-01-02"),
		c.dates[len(c.dates)-1].Format("2006-01-02"),
		len(c.dates))
}

// Row is one dated observation of a tabular source, keyed by column name.
type Row struct {
	Date   time.Time
	Values map[string]float64
}

// FromRows loads a schedule from tabular rows. Rows are sorted ascending by
// date; duplicate dates are rejected. The column set is the union of all row
// keys, absent cells read as zero. The schedule's periodicity is inferred
// from the resulting date grid.
func FromRows(rows []Row) (*Cashflow, error) {
	if len(rows) == 0 {
		return New(), nil
	}
	sorted := append([]Row(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var names []string
	seen := map[string]bool{}
	for _, r := range sorted {
		for name := range r.Values {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	c := New()
	c.dates = make([]time.Time, len(sorted))
	for i, r := range sorted {
		if i > 0 && !sorted[i-1].Date.Before(r.Date) {
			return nil, fmt.Errorf("FromRows: %w: duplicate date %s",
				calendar.ErrInvalidDateRange, r.Date.Format("2006-01-02"))
		}
		c.dates[i] = r.Date
	}
	for _, name := range names {
		col := make([]float64, len(sorted))
		for i, r := range sorted {
			col[i] = r.Values[name]
		}
		c.setColumn(name, col)
	}
	c.freq = calendar.InferPeriodicity(c.dates)
	return c, nil
}

// DateRange names the supported ways of pinning a schedule's date grid:
// both endpoints, one endpoint plus a period count, or a period count alone
// (anchored at today).
type DateRange struct {
	Start   time.Time
	End     time.Time
	Periods int
}

func today() time.Time {
	now := time.Now().UTC()
	return calendar.Date(now.Year(), now.Month(), now.Day())
}

func resolveDates(dr DateRange, freq calendar.Periodicity) ([]time.Time, error) {
	start, end := dr.Start, dr.End
	switch {
	case !start.IsZero() && !end.IsZero():
		// both endpoints pin the grid directly
	case dr.Periods > 0:
		months, err := freq.Months()
		if err != nil {
			return nil, fmt.Errorf("resolve dates: %w", err)
		}
		span := dr.Periods * months
		switch {
		case !end.IsZero():
			start = calendar.SameOrLastDayInMonths(end, -span)
		case !start.IsZero():
			end = calendar.SameOrLastDayInMonths(start, span)
		default:
			start = today()
			end = calendar.SameOrLastDayInMonths(start, span)
		}
	default:
		return nil, fmt.Errorf("resolve dates: %w: need start+end, an endpoint with periods, or periods",
			calendar.ErrInvalidDateRange)
	}
	return calendar.GenerateRange(start, end, freq)
}

// amountPayments builds the per-period payment sequence. A non-zero yield
// gradient compounds the base amount and takes precedence over the
// arithmetic amount gradient.
func amountPayments(amount float64, periods int, gradientYield, gradientAmount float64) []float64 {
	pmts := make([]float64, periods)
	for p := 0; p < periods; p++ {
		if gradientYield != 0 {
			pmts[p] = amount * math.Pow(1+gradientYield, float64(p))
		} else {
			pmts[p] = amount + gradientAmount*float64(p)
		}
	}
	return pmts
}

// assemble lays out the standard generated-schedule columns: interest_paid
// is zero at period 0 followed by the payment sequence, principal sits at
// the first and last dates, brutto is their sum.
func assemble(dates []time.Time, pmts []float64, initialCapital, finalCapital float64) *Cashflow {
	n := len(dates)
	interest := make([]float64, n)
	copy(interest[1:], pmts)
	principal := make([]float64, n)
	principal[0] = initialCapital
	principal[n-1] += finalCapital
	brutto := make([]float64, n)
	for i := range brutto {
		brutto[i] = principal[i] + interest[i]
	}

	c := New()
	c.dates = append([]time.Time(nil), dates...)
	c.setColumn(ColInterestPaid, interest)
	c.setColumn(ColPrincipal, principal)
	c.setColumn(ColBrutto, brutto)
	c.freq = calendar.InferPeriodicity(c.dates)
	return c
}

// PaymentSpec describes a regular-payment schedule: a flat or graded amount
// paid every period from the first period on, with optional capital
// placements at the endpoints.
type PaymentSpec struct {
	Amount         float64
	Freq           calendar.Periodicity
	Dates          DateRange
	InitialCapital float64
	FinalCapital   float64
	GradientYield  float64
	GradientAmount float64
}

// FromRegularPayment generates a schedule of dated payments. Period 0 (the
// start date) pays no interest; the payment sequence starts at period 1.
func FromRegularPayment(spec PaymentSpec) (*Cashflow, error) {
	dates, err := resolveDates(spec.Dates, spec.Freq)
	if err != nil {
		return nil, fmt.Errorf("FromRegularPayment: %w", err)
	}
	pmts := amountPayments(spec.Amount, len(dates)-1, spec.GradientYield, spec.GradientAmount)
	return assemble(dates, pmts, spec.InitialCapital, spec.FinalCapital), nil
}

// InterestSpec describes a regular interest-accrual schedule: coupons sized
// by an interest rate on the placed capital, optionally indexed to inflation
// and graded by a compounding yield gradient.
type InterestSpec struct {
	Interest       rate.Rate
	Freq           calendar.Periodicity
	Inflation      *rate.Rate // nil means no indexing
	Dates          DateRange
	InitialCapital float64
	FinalCapital   float64
	GradientYield  float64
}

// FromRegularInterest generates a coupon schedule. For periodic frequencies
// the interest and inflation rates are first converted to the schedule's
// periodicity and each coupon accrues on the initial capital. For Bullet the
// whole accrual is a single lump at the end date, measured in the rate's own
// periodicity.
func FromRegularInterest(spec InterestSpec) (*Cashflow, error) {
	dates, err := resolveDates(spec.Dates, spec.Freq)
	if err != nil {
		return nil, fmt.Errorf("FromRegularInterest: %w", err)
	}
	inflation := rate.NewCompound(0, calendar.Annual)
	if spec.Inflation != nil {
		inflation = *spec.Inflation
	}

	var pmts []float64
	if spec.Freq != calendar.Bullet {
		interest, err := spec.Interest.Equivalent(spec.Freq)
		if err != nil {
			return nil, fmt.Errorf("FromRegularInterest: %w", err)
		}
		infl, err := inflation.Equivalent(spec.Freq)
		if err != nil {
			return nil, fmt.Errorf("FromRegularInterest: %w", err)
		}
		pmts = make([]float64, len(dates)-1)
		for p := range pmts {
			accrual := (1+interest.Value*math.Pow(1+spec.GradientYield, float64(p)))*(1+infl.Value) - 1
			pmts[p] = -spec.InitialCapital * accrual
		}
	} else {
		dt, err := calendar.DeltaForPeriodicity(dates[0], dates[1], spec.Interest.Freq)
		if err != nil {
			return nil, fmt.Errorf("FromRegularInterest: %w", err)
		}
		lump := spec.Interest.FutureValue(-spec.InitialCapital, dt)*
			math.Pow(1+inflation.Value, dt) + spec.InitialCapital
		pmts = []float64{lump}
	}
	return assemble(dates, pmts, spec.InitialCapital, spec.FinalCapital), nil
}

// FromInterestCurve generates a coupon schedule whose per-period accrual
// comes from a yield curve instead of a constant rate. The curve must cover
// at least one yield per paying period, in schedule order.
func FromInterestCurve(curve *rate.Curve, spec InterestSpec) (*Cashflow, error) {
	dates, err := resolveDates(spec.Dates, spec.Freq)
	if err != nil {
		return nil, fmt.Errorf("FromInterestCurve: %w", err)
	}
	periods := len(dates) - 1
	if curve.Len() < periods {
		return nil, fmt.Errorf("FromInterestCurve: %w: curve has %d yields for %d periods",
			rate.ErrDomain, curve.Len(), periods)
	}
	inflation := rate.NewCompound(0, calendar.Annual)
	if spec.Inflation != nil {
		inflation = *spec.Inflation
	}
	infl, err := inflation.Equivalent(spec.Freq)
	if err != nil {
		return nil, fmt.Errorf("FromInterestCurve: %w", err)
	}
	yields := curve.Yields()
	pmts := make([]float64, periods)
	for p := range pmts {
		pmts[p] = -spec.InitialCapital * ((1+yields[p])*(1+infl.Value) - 1)
	}
	return assemble(dates, pmts, spec.InitialCapital, spec.FinalCapital), nil
}

// InstallmentSpec describes an equal-installment amortization: a level
// payment sized so the fixed number of payments fully repays the placed
// capital plus interest. The rate must already be expressed at the payment
// periodicity.
type InstallmentSpec struct {
	Interest       rate.Rate
	InitialCapital float64
	Freq           calendar.Periodicity
	Dates          DateRange
}

// FromEqualInstallments solves the level payment through the amortization
// factor and delegates to FromRegularPayment. The result keeps only the
// brutto column; the principal/interest split of an annuity is not tracked.
func FromEqualInstallments(spec InstallmentSpec) (*Cashflow, error) {
	dates, err := resolveDates(spec.Dates, spec.Freq)
	if err != nil {
		return nil, fmt.Errorf("FromEqualInstallments: %w", err)
	}
	r := spec.Interest.Value
	if r == 0 {
		return nil, fmt.Errorf("FromEqualInstallments: %w: zero rate", rate.ErrDomain)
	}
	n := float64(len(dates) - 1)
	factor := math.Pow(1+r, n) * r / (math.Pow(1+r, n) - 1)
	pmt := -spec.InitialCapital * factor

	c, err := FromRegularPayment(PaymentSpec{
		Amount:         pmt,
		Freq:           spec.Freq,
		Dates:          DateRange{Start: dates[0], End: dates[len(dates)-1]},
		InitialCapital: spec.InitialCapital,
	})
	if err != nil {
		return nil, err
	}
	c.keepColumns(ColBrutto)
	return c, nil
}

// ---------------------------------------------------------------------------
// column plumbing
// ---------------------------------------------------------------------------

func (c *Cashflow) setColumn(name string, vals []float64) {
	if _, exists := c.cols[name]; !exists {
		c.order = append(c.order, name)
	}
	c.cols[name] = vals
}

func (c *Cashflow) keepColumns(names ...string) {
	keep := map[string]bool{}
	for _, n := range names {
		keep[n] = true
	}
	var order []string
	for _, n := range c.order {
		if keep[n] {
			order = append(order, n)
		} else {
			delete(c.cols, n)
		}
	}
	c.order = order
}

func (c *Cashflow) hasColumn(name string) bool {
	_, ok := c.cols[name]
	return ok
}

// ---------------------------------------------------------------------------
// queries
// ---------------------------------------------------------------------------

// Len returns the number of rows.
func (c *Cashflow) Len() int { return len(c.dates) }

// Empty reports whether the schedule has no rows.
func (c *Cashflow) Empty() bool { return len(c.dates) == 0 }

// Freq is the periodicity inferred from the schedule's date grid.
func (c *Cashflow) Freq() calendar.Periodicity { return c.freq }

// Dates returns a copy of the schedule's date key, in ascending order.
func (c *Cashflow) Dates() []time.Time {
	return append([]time.Time(nil), c.dates...)
}

// Columns lists the computed column names in insertion order.
func (c *Cashflow) Columns() []string {
	return append([]string(nil), c.order...)
}

// Column returns a copy of a named column.
func (c *Cashflow) Column(name string) ([]float64, error) {
	col, ok := c.cols[name]
	if !ok {
		return nil, fmt.Errorf("Column: %w: %q", ErrMissingColumn, name)
	}
	return append([]float64(nil), col...), nil
}

// Point returns the row at the given date.
func (c *Cashflow) Point(date time.Time) (map[string]float64, error) {
	for i, d := range c.dates {
		if d.Equal(date) {
			row := make(map[string]float64, len(c.order))
			for _, name := range c.order {
				row[name] = c.cols[name][i]
			}
			return row, nil
		}
	}
	return nil, fmt.Errorf("Point: %w: no row at %s", calendar.ErrInvalidDateRange, date.Format("2006-01-02"))
}

// Rows exports the schedule in ascending date order with every computed
// column.
func (c *Cashflow) Rows() []Row {
	rows := make([]Row, len(c.dates))
	for i, d := range c.dates {
		vals := make(map[string]float64, len(c.order))
		for _, name := range c.order {
			vals[name] = c.cols[name][i]
		}
		rows[i] = Row{Date: d, Values: vals}
	}
	return rows
}

// Copy returns a deep copy of the schedule.
func (c *Cashflow) Copy() *Cashflow {
	out := New()
	out.dates = append([]time.Time(nil), c.dates...)
	out.freq = c.freq
	for _, name := range c.order {
		out.setColumn(name, append([]float64(nil), c.cols[name]...))
	}
	return out
}

// spacing classifies the schedule's date grid for operations that require a
// regular one. A two-row grid that matches no periodic frequency counts as
// Bullet.
func (c *Cashflow) spacing() calendar.Periodicity {
	p := calendar.InferPeriodicity(c.dates)
	if p == calendar.Irregular && len(c.dates) == 2 {
		return calendar.Bullet
	}
	return p
}

func (c *Cashflow) requireRegular(op string) error {
	if p := c.spacing(); p == calendar.Irregular {
		return fmt.Errorf("%s: %w: irregular date grid", op, calendar.ErrInvalidPeriodicity)
	}
	return nil
}

// Package bond composes the schedule engine into whole fixed-income
// instruments: a named placement with an interest rate, an optional
// inflation index, a coupon frequency and an issue/maturity pair. The
// instrument's category decides withholding treatment through the injected
// tables.
package bond

import (
	"errors"
	"fmt"
	"time"

	"github.com/meenmo/tvm/calendar"
	"github.com/meenmo/tvm/cashflow"
	"github.com/meenmo/tvm/config"
	"github.com/meenmo/tvm/rate"
	"github.com/meenmo/tvm/value"
)

// ErrUnknownCategory is returned when an instrument names a category the
// tables do not carry.
var ErrUnknownCategory = errors.New("unknown instrument category")

// Instrument is a fixed-income placement. FaceValue is the capital placed
// at issue and returned at maturity; Interest accrues on it every Freq
// period, indexed by Inflation when set.
type Instrument struct {
	Name      string
	Category  string
	FaceValue float64
	Interest  rate.Rate
	Inflation *rate.Rate
	Freq      calendar.Periodicity
	Issue     time.Time
	Maturity  time.Time
}

func (b Instrument) String() string {
	return fmt.Sprintf("%s (%s): %.2f at %s, %s to %s",
		b.Name, b.Category, b.FaceValue, b.Interest,
		b.Issue.Format("2006-01-02"), b.Maturity.Format("2006-01-02"))
}

// Schedule builds the instrument's gross cashflow: the face value goes out
// at issue, coupons accrue per period and the face value comes back at
// maturity.
func (b Instrument) Schedule() (*cashflow.Cashflow, error) {
	c, err := cashflow.FromRegularInterest(cashflow.InterestSpec{
		Interest:       b.Interest,
		Freq:           b.Freq,
		Inflation:      b.Inflation,
		Dates:          cashflow.DateRange{Start: b.Issue, End: b.Maturity},
		InitialCapital: -b.FaceValue,
		FinalCapital:   b.FaceValue,
	})
	if err != nil {
		return nil, fmt.Errorf("Schedule %s: %w", b.Name, err)
	}
	return c, nil
}

// NetSchedule builds the instrument's cashflow after withholding. Taxable
// categories run the bracket schedule over the interest; exempt categories
// get a netto column equal to brutto so downstream code can always value
// netto.
func (b Instrument) NetSchedule(tables config.Tables) (*cashflow.Cashflow, error) {
	cat, ok := tables.Categories[b.Category]
	if !ok {
		return nil, fmt.Errorf("NetSchedule %s: %w: %q", b.Name, ErrUnknownCategory, b.Category)
	}
	c, err := b.Schedule()
	if err != nil {
		return nil, err
	}
	if cat.Taxable {
		if _, err := c.Tax(tables.Withholding); err != nil {
			return nil, fmt.Errorf("NetSchedule %s: %w", b.Name, err)
		}
		return c, nil
	}
	brutto, err := c.Column(cashflow.ColBrutto)
	if err != nil {
		return nil, fmt.Errorf("NetSchedule %s: %w", b.Name, err)
	}
	rows := c.Rows()
	for i := range rows {
		rows[i].Values[cashflow.ColTax] = 0
		rows[i].Values[cashflow.ColNetto] = brutto[i]
	}
	return cashflow.FromRows(rows)
}

// Yield is the instrument's internal rate of return on the gross cashflow,
// as an annual compound rate.
func (b Instrument) Yield() (rate.Rate, error) {
	c, err := b.Schedule()
	if err != nil {
		return rate.Rate{}, err
	}
	r, err := c.IRR(cashflow.ColBrutto)
	if err != nil {
		return rate.Rate{}, fmt.Errorf("Yield %s: %w", b.Name, err)
	}
	return r, nil
}

// NetYield is the internal rate of return on the after-tax cashflow.
func (b Instrument) NetYield(tables config.Tables) (rate.Rate, error) {
	c, err := b.NetSchedule(tables)
	if err != nil {
		return rate.Rate{}, err
	}
	r, err := c.IRR(cashflow.ColNetto)
	if err != nil {
		return rate.Rate{}, fmt.Errorf("NetYield %s: %w", b.Name, err)
	}
	return r, nil
}

// PresentValue discounts the gross cashflow at the given per-period rate
// and sums it at the issue date.
func (b Instrument) PresentValue(discount rate.Rate) (value.Value, error) {
	c, err := b.Schedule()
	if err != nil {
		return value.Value{}, err
	}
	v, err := c.NPV(cashflow.ColBrutto, &discount)
	if err != nil {
		return value.Value{}, fmt.Errorf("PresentValue %s: %w", b.Name, err)
	}
	return v, nil
}

// Insured reports whether the instrument's category carries deposit
// insurance.
func (b Instrument) Insured(tables config.Tables) (bool, error) {
	cat, ok := tables.Categories[b.Category]
	if !ok {
		return false, fmt.Errorf("Insured %s: %w: %q", b.Name, ErrUnknownCategory, b.Category)
	}
	return cat.Insured, nil
}

// Portfolio aggregates instrument schedules into one combined cashflow.
func Portfolio(tables config.Tables, instruments ...Instrument) (*cashflow.Cashflow, error) {
	total := cashflow.New()
	for _, b := range instruments {
		c, err := b.NetSchedule(tables)
		if err != nil {
			return nil, fmt.Errorf("Portfolio: %w", err)
		}
		total, err = total.Add(c)
		if err != nil {
			return nil, fmt.Errorf("Portfolio: %w", err)
		}
	}
	return total, nil
}

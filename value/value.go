// Package value provides a monetary amount anchored to a valuation date.
// Amounts observed at different dates are not commensurable, so arithmetic
// between two Values requires matching anchors.
package value

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMismatchedAnchor is returned when arithmetic or comparison is attempted
// between values anchored at different dates.
var ErrMismatchedAnchor = errors.New("values anchored at different dates")

// Value is an amount as of a valuation date. Immutable; operations return
// new Values.
type Value struct {
	Amount float64
	Date   time.Time
}

func New(amount float64, date time.Time) Value {
	return Value{Amount: amount, Date: date}
}

func (v Value) String() string {
	return fmt.Sprintf("Value(%s @ %s)",
		decimal.NewFromFloat(v.Amount).RoundBank(2).StringFixed(2),
		v.Date.Format("2006-01-02"))
}

func (v Value) sameAnchor(o Value) error {
	if !v.Date.Equal(o.Date) {
		return fmt.Errorf("%w: %s vs %s", ErrMismatchedAnchor,
			v.Date.Format("2006-01-02"), o.Date.Format("2006-01-02"))
	}
	return nil
}

// Add sums two values anchored at the same date.
func (v Value) Add(o Value) (Value, error) {
	if err := v.sameAnchor(o); err != nil {
		return Value{}, fmt.Errorf("Add: %w", err)
	}
	return Value{Amount: v.Amount + o.Amount, Date: v.Date}, nil
}

// Sub subtracts a value anchored at the same date.
func (v Value) Sub(o Value) (Value, error) {
	if err := v.sameAnchor(o); err != nil {
		return Value{}, fmt.Errorf("Sub: %w", err)
	}
	return Value{Amount: v.Amount - o.Amount, Date: v.Date}, nil
}

// AddAmount shifts the amount by a plain number, keeping the anchor.
func (v Value) AddAmount(x float64) Value {
	return Value{Amount: v.Amount + x, Date: v.Date}
}

// SubAmount shifts the amount down by a plain number, keeping the anchor.
func (v Value) SubAmount(x float64) Value {
	return Value{Amount: v.Amount - x, Date: v.Date}
}

// Equal requires both the amount and the anchor date to match.
func (v Value) Equal(o Value) bool {
	return v.Amount == o.Amount && v.Date.Equal(o.Date)
}

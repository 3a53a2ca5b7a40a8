package calendar

import (
	"time"

	"github.com/rickar/cal/v2"
)

// AdjustBusinessDay rolls t forward to the next working day of bc, falling
// back to the prior working day when the roll would leave t's month
// (Modified Following).
func AdjustBusinessDay(t time.Time, bc *cal.BusinessCalendar) time.Time {
	origMonth := t.Month()
	for !bc.IsWorkday(t) {
		t = t.AddDate(0, 0, 1)
	}
	if t.Month() != origMonth {
		t = t.AddDate(0, 0, -1)
		for !bc.IsWorkday(t) {
			t = t.AddDate(0, 0, -1)
		}
	}
	return t
}

// AdjustRange applies AdjustBusinessDay to every date of a generated range.
// It returns a new slice; the unadjusted grid stays the schedule's key so
// that periodicity inference is unaffected by holiday rolls.
func AdjustRange(dates []time.Time, bc *cal.BusinessCalendar) []time.Time {
	out := make([]time.Time, len(dates))
	for i, d := range dates {
		out[i] = AdjustBusinessDay(d, bc)
	}
	return out
}

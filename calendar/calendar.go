// Package calendar implements the date arithmetic that payment schedules are
// anchored to: periodicity-stepped date ranges with same-or-last-day month
// rollover, banking-convention year/month deltas, and periodicity inference
// from an observed date set.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// Periodicity says how often a rate compounds or a schedule pays.
type Periodicity string

const (
	Annual     Periodicity = "Y"
	Semiannual Periodicity = "S"
	Quarterly  Periodicity = "Q"
	Monthly    Periodicity = "M"
	Daily      Periodicity = "D"
	// Bullet marks a single lump settlement: the schedule holds exactly the
	// start and end dates and nothing accrues periodically in between.
	Bullet Periodicity = "F"
	// Irregular is returned by InferPeriodicity when no regular grid matches.
	Irregular Periodicity = "X"
)

var (
	ErrInvalidPeriodicity = errors.New("invalid periodicity")
	ErrInvalidDateRange   = errors.New("invalid date range")
)

// Valid reports whether p is one of the recognised periodicity codes
// (Irregular included; it is a legitimate inference result).
func (p Periodicity) Valid() bool {
	switch p {
	case Annual, Semiannual, Quarterly, Monthly, Daily, Bullet, Irregular:
		return true
	}
	return false
}

// Months returns the number of calendar months in one period. Only the
// month-steppable periodicities have one.
func (p Periodicity) Months() (int, error) {
	switch p {
	case Annual:
		return 12, nil
	case Semiannual:
		return 6, nil
	case Quarterly:
		return 3, nil
	case Monthly:
		return 1, nil
	default:
		return 0, fmt.Errorf("Months: %w: %q has no month step", ErrInvalidPeriodicity, p)
	}
}

// PerYear returns the number of periods per year, used for equivalent-rate
// conversion. Daily uses the 360-day commercial year.
func (p Periodicity) PerYear() (float64, error) {
	switch p {
	case Annual:
		return 1, nil
	case Semiannual:
		return 2, nil
	case Quarterly:
		return 4, nil
	case Monthly:
		return 12, nil
	case Daily:
		return 360, nil
	default:
		return 0, fmt.Errorf("PerYear: %w: %q is not a periodic frequency", ErrInvalidPeriodicity, p)
	}
}

// IsLeapYear uses the Gregorian rule.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// DaysInMonth returns the length of the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsMonthEnd reports whether t falls on the last day of its month.
func IsMonthEnd(t time.Time) bool {
	return t.Day() == DaysInMonth(t.Year(), t.Month())
}

// Date builds a UTC civil date, the normal form for all schedule dates.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// LastDayInMonths returns the last day of the month monthsForward months
// after ref. monthsForward may be negative.
func LastDayInMonths(ref time.Time, monthsForward int) time.Time {
	first := Date(ref.Year(), ref.Month(), 1).AddDate(0, monthsForward, 0)
	return Date(first.Year(), first.Month(), DaysInMonth(first.Year(), first.Month()))
}

// SameOrLastDayInMonths steps ref by monthsForward months, keeping the day of
// month where the target month is long enough and clamping to the month end
// where it is not. This clamp is the single rollover rule every range
// generator shares.
func SameOrLastDayInMonths(ref time.Time, monthsForward int) time.Time {
	first := Date(ref.Year(), ref.Month(), 1).AddDate(0, monthsForward, 0)
	day := ref.Day()
	if last := DaysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return Date(first.Year(), first.Month(), day)
}

// GenerateRange produces the dated payment grid between start and end at the
// given periodicity.
//
// Bullet yields exactly [start, end]. Annual steps whole calendar years,
// clamping Feb 29 starts to Feb 28 in non-leap years. Monthly and Semiannual
// step by one or six months; a month-end start pins every generated date to
// its month end, any other start keeps the day of month, clamped to short
// months.
func GenerateRange(start, end time.Time, p Periodicity) ([]time.Time, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("GenerateRange: %w: start %s not before end %s",
			ErrInvalidDateRange, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	switch p {
	case Bullet:
		return []time.Time{start, end}, nil
	case Annual:
		return stepRange(start, end, 12, false), nil
	case Semiannual:
		return stepRange(start, end, 6, IsMonthEnd(start)), nil
	case Monthly:
		return stepRange(start, end, 1, IsMonthEnd(start)), nil
	default:
		return nil, fmt.Errorf("GenerateRange: %w: %q", ErrInvalidPeriodicity, p)
	}
}

func stepRange(start, end time.Time, stepMonths int, pinMonthEnd bool) []time.Time {
	var dates []time.Time
	next := start
	for months := 0; !next.After(end); {
		dates = append(dates, next)
		months += stepMonths
		if pinMonthEnd {
			next = LastDayInMonths(start, months)
		} else {
			next = SameOrLastDayInMonths(start, months)
		}
	}
	return dates
}

// sameMonthDay reports whether a and b share both month and day of month.
func sameMonthDay(a, b time.Time) bool {
	return a.Month() == b.Month() && a.Day() == b.Day()
}

func leapYearsBetween(a, b time.Time) int {
	n := 0
	for y := a.Year(); y <= b.Year(); y++ {
		if IsLeapYear(y) {
			n++
		}
	}
	return n
}

// DeltaYears measures the elapsed time from start to end in years.
//
// Anniversaries count whole years; month-end to month-end counts whole
// months over twelve. Anything else uses the commercial approximation
// years + months/12 + days/365, less one day per leap year spanned. The
// approximation is the banking convention, not exact Julian-day math.
func DeltaYears(start, end time.Time) float64 {
	if sameMonthDay(start, end) {
		return float64(end.Year() - start.Year())
	}
	if IsMonthEnd(start) && IsMonthEnd(end) {
		return float64(end.Year()-start.Year()) + float64(int(end.Month())-int(start.Month()))/12
	}
	dy := float64(end.Year()-start.Year()) +
		float64(int(end.Month())-int(start.Month()))/12 +
		float64(end.Day()-start.Day())/365
	return dy - float64(leapYearsBetween(start, end))/365
}

// DeltaMonths is the months analog of DeltaYears: whole months on shared day
// of month or month ends, otherwise months + days/30 with the same leap
// correction.
func DeltaMonths(start, end time.Time) float64 {
	if sameMonthDay(start, end) {
		return float64((end.Year() - start.Year()) * 12)
	}
	if start.Day() == end.Day() || (IsMonthEnd(start) && IsMonthEnd(end)) {
		return float64((end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()))
	}
	dm := float64((end.Year()-start.Year())*12+int(end.Month())-int(start.Month())) +
		float64(end.Day()-start.Day())/30
	return dm - float64(leapYearsBetween(start, end))/365
}

// DeltaForPeriodicity expresses the elapsed time from start to end in units
// of the given periodicity.
func DeltaForPeriodicity(start, end time.Time, p Periodicity) (float64, error) {
	switch p {
	case Annual:
		return DeltaYears(start, end), nil
	case Semiannual:
		return DeltaMonths(start, end) / 6, nil
	case Monthly:
		return DeltaMonths(start, end), nil
	default:
		return 0, fmt.Errorf("DeltaForPeriodicity: %w: %q", ErrInvalidPeriodicity, p)
	}
}

// InferPeriodicity detects the periodicity of an ascending date set by
// regenerating a candidate grid at each of Annual, Semiannual and Monthly
// between the set's endpoints and checking for an exact match. Irregular is
// returned when none matches.
func InferPeriodicity(dates []time.Time) Periodicity {
	if len(dates) < 2 {
		return Irregular
	}
	start, end := dates[0], dates[len(dates)-1]
	for _, p := range []Periodicity{Annual, Semiannual, Monthly} {
		candidate, err := GenerateRange(start, end, p)
		if err != nil || len(candidate) != len(dates) {
			continue
		}
		match := true
		for i := range candidate {
			if !candidate[i].Equal(dates[i]) {
				match = false
				break
			}
		}
		if match {
			return p
		}
	}
	return Irregular
}

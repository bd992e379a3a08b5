package schedule

import (
	"time"

	"github.com/mcclellann/loanledger/pkg/models"
)

// Cadence is the spacing between consecutive due dates.
type Cadence string

const (
	CadenceMonthly  Cadence = "monthly"
	CadenceWeekly   Cadence = "weekly"
	CadenceBiweekly Cadence = "biweekly"
	CadenceDaily    Cadence = "daily"
)

const (
	weeklyStep   = 7
	biweeklyStep = 15
)

// Options controls which days may not hold a due date.
type Options struct {
	SkipSaturday bool
	SkipSunday   bool
	SkipHolidays bool
	Calendar     Calendar // defaults to NationalHolidays
}

func (o Options) skipped(t time.Time) bool {
	switch {
	case o.SkipSaturday && t.Weekday() == time.Saturday:
		return true
	case o.SkipSunday && t.Weekday() == time.Sunday:
		return true
	case o.SkipHolidays:
		cal := o.Calendar
		if cal == nil {
			cal = NationalHolidays
		}
		return cal.IsHoliday(t)
	}
	return false
}

// advance moves t forward until it lands on an allowed day.
func (o Options) advance(t time.Time) time.Time {
	// A full year of consecutive skipped days means the rules are unsatisfiable.
	for i := 0; i < 366 && o.skipped(t); i++ {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// OptionsFor returns the skip rules stored on a contract.
func OptionsFor(c *models.Contract) Options {
	return Options{
		SkipSaturday: c.SkipSaturday,
		SkipSunday:   c.SkipSunday,
		SkipHolidays: c.SkipHolidays,
	}
}

// CadenceFor maps a payment type to its cadence. Single payments use monthly
// spacing for their one date.
func CadenceFor(pt models.PaymentType) Cadence {
	switch pt {
	case models.PaymentTypeWeekly:
		return CadenceWeekly
	case models.PaymentTypeBiweekly:
		return CadenceBiweekly
	case models.PaymentTypeDaily:
		return CadenceDaily
	}
	return CadenceMonthly
}

// Generate returns count ordered due dates starting at start.
//
// Monthly dates count calendar months from start and clamp the day to the end
// of shorter months, so 01-31 is followed by 02-29 and then 03-31. Daily dates
// walk forward one day at a time over skipped days. Weekly, biweekly and monthly
// candidates are computed from start and then individually moved past skipped
// days, so one skip never shifts the rest of the sequence.
func Generate(start time.Time, count int, cadence Cadence, opts Options) []time.Time {
	if count < 1 {
		return nil
	}
	start = Day(start)
	dates := make([]time.Time, 0, count)

	if cadence == CadenceDaily {
		candidate := start
		for len(dates) < count {
			candidate = opts.advance(candidate)
			dates = append(dates, candidate)
			candidate = candidate.AddDate(0, 0, 1)
		}
		return dates
	}

	for i := 0; i < count; i++ {
		var candidate time.Time
		switch cadence {
		case CadenceWeekly:
			candidate = start.AddDate(0, 0, i*weeklyStep)
		case CadenceBiweekly:
			candidate = start.AddDate(0, 0, i*biweeklyStep)
		default:
			candidate = AddMonths(start, i)
		}
		dates = append(dates, opts.advance(candidate))
	}
	return dates
}

// Next returns the date one cadence step after t.
func Next(t time.Time, cadence Cadence) time.Time {
	switch cadence {
	case CadenceDaily:
		return t.AddDate(0, 0, 1)
	case CadenceWeekly:
		return t.AddDate(0, 0, weeklyStep)
	case CadenceBiweekly:
		return t.AddDate(0, 0, biweeklyStep)
	}
	return AddMonths(t, 1)
}

// AddMonths adds n calendar months, clamping the day to the target month's length.
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	d := t.Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DueDates resolves a contract's installment due dates. Stored dates are used
// when they cover every installment; otherwise the dates are derived from the
// contract's due date, cadence and skip rules.
func DueDates(c *models.Contract) []time.Time {
	n := c.Count()
	if len(c.InstallmentDueDates) >= n {
		dates := make([]time.Time, n)
		for i := range dates {
			dates[i] = Day(c.InstallmentDueDates[i])
		}
		return dates
	}
	first := c.DueDate
	if first.IsZero() {
		first = c.StartDate
	}
	if c.PaymentType == models.PaymentTypeSingle || n == 1 {
		return []time.Time{Day(first)}
	}
	return Generate(first, n, CadenceFor(c.PaymentType), OptionsFor(c))
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

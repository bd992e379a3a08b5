package schedule

import "time"

// Calendar reports whether a date is a non-business holiday.
type Calendar interface {
	IsHoliday(t time.Time) bool
}

// CalendarFunc adapts a plain function to Calendar.
type CalendarFunc func(t time.Time) bool

func (f CalendarFunc) IsHoliday(t time.Time) bool { return f(t) }

type monthDay struct {
	month time.Month
	day   int
}

var fixedHolidays = []monthDay{
	{time.January, 1},
	{time.April, 21},
	{time.May, 1},
	{time.September, 7},
	{time.October, 12},
	{time.November, 2},
	{time.November, 15},
	{time.November, 20},
	{time.December, 25},
}

// NationalHolidays is the default calendar: fixed national dates plus the
// Easter-relative Carnival Monday and Tuesday, Good Friday and Corpus Christi.
var NationalHolidays Calendar = CalendarFunc(isNationalHoliday)

func isNationalHoliday(t time.Time) bool {
	for _, h := range fixedHolidays {
		if t.Month() == h.month && t.Day() == h.day {
			return true
		}
	}
	easter := Easter(t.Year())
	for _, offset := range []int{-48, -47, -2, 60} {
		if sameDay(t, easter.AddDate(0, 0, offset)) {
			return true
		}
	}
	return false
}

// Easter returns Easter Sunday of the given year (anonymous Gregorian algorithm).
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

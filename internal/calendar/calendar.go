// Package calendar provides the date handling shared by the prediction
// pipeline: UTC day truncation, inclusive ranges, seasons and US federal
// holidays.
package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// unixEpochOrdinal is the proleptic Gregorian ordinal of 1970-01-01,
// counting 0001-01-01 as day 1.
const unixEpochOrdinal = 719163

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC calendar date.
func Today() time.Time {
	return Day(time.Now().UTC())
}

// Parse parses a YYYY-MM-DD date.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// Format renders t as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(DateLayout)
}

// Range returns every date from start to end inclusive. It returns nil when
// end precedes start.
func Range(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil
	}
	days := make([]time.Time, 0, DaysBetween(start, end)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Window returns n consecutive dates beginning at start.
func Window(start time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	return Range(start, Day(start).AddDate(0, 0, n-1))
}

// DaysBetween returns the whole number of days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// Ordinal returns the proleptic Gregorian ordinal of t's date.
func Ordinal(t time.Time) int {
	return int(Day(t).Unix()/86400) + unixEpochOrdinal
}

// Season names the meteorological season for a northern-hemisphere month.
func Season(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}

// IsHoliday reports whether t falls on a US federal holiday.
func IsHoliday(t time.Time) bool {
	y, m, d := t.Date()
	switch {
	case m == time.January && d == 1,
		m == time.July && d == 4,
		m == time.November && d == 11,
		m == time.December && d == 25:
		return true
	}

	for _, h := range floatingHolidays {
		if m == h.month && d == nthWeekday(y, h.month, h.weekday, h.n) {
			return true
		}
	}
	return false
}

type floatingHoliday struct {
	month   time.Month
	weekday time.Weekday
	n       int
}

var floatingHolidays = []floatingHoliday{
	{time.January, time.Monday, 3},    // Martin Luther King Jr. Day
	{time.February, time.Monday, 3},   // Presidents' Day
	{time.September, time.Monday, 1},  // Labor Day
	{time.October, time.Monday, 2},    // Columbus Day
	{time.November, time.Thursday, 4}, // Thanksgiving
}

// nthWeekday returns the day of month of the nth given weekday.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	offset := (int(wd) - int(first) + 7) % 7
	return 1 + offset + (n-1)*7
}

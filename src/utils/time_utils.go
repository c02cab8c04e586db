package utils

import "time"

// DayKeyUTC returns the UTC calendar date of t as "2006-01-02".
// Used as the value for once-per-day settings keys.
func DayKeyUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// StartOfDayUTC returns midnight UTC of the day t falls on.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDayUTC reports whether a and b fall on the same UTC calendar date.
func SameDayUTC(a, b time.Time) bool {
	return DayKeyUTC(a) == DayKeyUTC(b)
}

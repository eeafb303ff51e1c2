package domain

import "time"

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// DateOf returns the calendar date of t as midnight UTC.
// The civil date is taken in t's own location, so 2024-03-15T23:30-05:00 stays 2024-03-15.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate formats the calendar date of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return DateOf(t).Format(DateLayout)
}

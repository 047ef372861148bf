package shared

import "time"

// DateOnly normalizes a timestamp to a calendar date: midnight UTC.
// All business dates in the ledger carry no time component.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar date from its components
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two timestamps fall on the same calendar date
func SameDate(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}

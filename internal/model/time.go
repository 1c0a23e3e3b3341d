package model

import "time"

// NormalizeMinute floors t to the start of its UTC minute, matching the
// log file's "minute boundary" timestamp convention (§3).
func NormalizeMinute(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}

// StartOfDay returns midnight UTC of t's date.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MinutesBetween returns the number of whole 60s steps between a and b
// (b must be >= a). 0 if equal.
func MinutesBetween(a, b time.Time) int {
	return int(b.Sub(a) / time.Minute)
}

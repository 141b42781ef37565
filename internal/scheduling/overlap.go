package scheduling

import "time"

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Intervals that merely touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// WindowSpan converts an availability window into the candidate appointment
// span. The whole window books as one appointment; there is no sub-slot
// division.
func WindowSpan(w *AvailabilityWindow) (start, end time.Time) {
	return w.StartsAt, w.EndsAt
}

// CombineDayTime puts the wall-clock of clock onto the calendar day of day.
// All times are naive local values, no timezone conversion happens.
func CombineDayTime(day, clock time.Time) time.Time {
	return time.Date(
		day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0,
		day.Location(),
	)
}

// DayOf truncates t to midnight of its calendar day.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

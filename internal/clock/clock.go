// Package clock centralizes the "what day is it" arithmetic used by
// daily quotas and streak tracking, so day-boundary logic lives in one
// place and tests can substitute a fixed clock.
package clock

import "time"

// Clock supplies the current time. The scheduler and its stores never
// call time.Now directly.
type Clock interface {
	Now() time.Time
}

// System is the wall-clock implementation of Clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed is a Clock pinned to a settable instant.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }

// Midnight returns t truncated to the start of its calendar day, in
// t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar-day boundaries crossed
// going from a to b. Same day yields 0, b on the day after a yields 1,
// and b before a yields a negative count. The midnight difference is
// rounded so DST transitions do not skew the count.
func DaysBetween(a, b time.Time) int {
	diff := Midnight(b).Sub(Midnight(a))
	days := diff.Hours() / 24
	if days >= 0 {
		return int(days + 0.5)
	}
	return int(days - 0.5)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 0
}

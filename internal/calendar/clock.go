package calendar

import "time"

// Clock supplies the current time. Tests pin it with FixedClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Today returns a FixedClock at local midnight of the given date.
func Today(year int, month time.Month, day int) FixedClock {
	return FixedClock{T: time.Date(year, month, day, 0, 0, 0, 0, time.Local)}
}

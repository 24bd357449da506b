package service

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidInterval is returned when an interval does not end after it starts.
var ErrInvalidInterval = errors.New("end time must be after start time")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds an interval, rejecting empty or inverted ranges.
func NewInterval(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether the two intervals share at least one instant.
// Back-to-back intervals (a.End == b.Start) do not overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// overlapCases decomposes Overlaps into the three ways a candidate can hit an existing interval.
func (a Interval) overlapCases(existing Interval) (startsDuring, endsDuring, contains bool) {
	startsDuring = !a.Start.Before(existing.Start) && a.Start.Before(existing.End)
	endsDuring = a.End.After(existing.Start) && !a.End.After(existing.End)
	contains = !a.Start.After(existing.Start) && !a.End.Before(existing.End)
	return
}

// Duration returns End - Start.
func (a Interval) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// DurationMinutes is the interval length rounded to the nearest whole minute.
func (a Interval) DurationMinutes() int {
	return DurationMinutes(a.Start, a.End)
}

// DurationMinutes returns round((end-start)/1m). Callers must reject end <= start first.
func DurationMinutes(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}

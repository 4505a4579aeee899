package daterange

import (
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("daterange: end must be after start")

// Range represents a half-open interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) (Range, error) {
	r := Range{Start: start.UTC(), End: end.UTC()}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return ErrInvalidRange
	}
	if !r.End.After(r.Start) {
		return ErrInvalidRange
	}
	return nil
}

func (r Range) Overlaps(other Range) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

func (r Range) ContainsDate(t time.Time) bool {
	t = t.UTC()
	return !t.Before(r.Start) && t.Before(r.End)
}

// Day truncates a timestamp to UTC midnight.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Days enumerates every whole day covered by the range, end exclusive.
func (r Range) Days() []time.Time {
	var days []time.Time
	for d := Day(r.Start); d.Before(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// CoversDay reports whether any instant of the given day falls inside the range.
func (r Range) CoversDay(day time.Time) bool {
	day = Day(day)
	next := day.AddDate(0, 0, 1)
	return r.Start.Before(next) && day.Before(r.End)
}

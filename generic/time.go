/*
Package generic provides the calendar primitives shared by the balance engine.

PURPOSE:
  Everything in the extra-staff engine is bucketed by calendar DATE, never by
  instant. A work day recorded at 23:30 local time must not slip into the next
  day because it was converted to UTC somewhere along the way. TimePoint
  captures "a date" and compares by date only.

KEY CONCEPTS:
  - TimePoint: A calendar date (time-of-day normalised away)
  - Period:    An inclusive [Start, End] date range (period.go)
  - WeekOf:    The Monday..Sunday window containing a date (period.go)

SEE ALSO:
  - period.go: Period type, week windowing, containment
  - saldo/consumption.go: Uses WeekOf to bucket approved work days
*/
package generic

import (
	"time"
)

// DateLayout is the wire format for dates across the API, CLI and storage.
const DateLayout = "2006-01-02"

// =============================================================================
// TIME POINT - A calendar date
// =============================================================================

type TimePoint struct {
	Time time.Time
}

// NewTimePoint builds a date in UTC.
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Date keeps only the calendar date of t, as seen in t's own location.
func Date(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint {
	return Date(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, &DateError{Input: s, Err: err}
	}
	return Date(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// normalize drops the time-of-day in the value's own location so that two
// TimePoints built from different zones still compare by calendar date.
func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	return tp.normalize().Format(DateLayout)
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// IsWithin reports whether date falls in [start, end], comparing dates only.
func IsWithin(date, start, end TimePoint) bool {
	return date.AfterOrEqual(start) && date.BeforeOrEqual(end)
}

// Earliest returns the smallest date in the list. ok is false for an empty list.
func Earliest(dates []TimePoint) (earliest TimePoint, ok bool) {
	for i, d := range dates {
		if i == 0 || d.Before(earliest) {
			earliest = d
		}
	}
	return earliest, len(dates) > 0
}

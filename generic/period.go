package generic

import "time"

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive [Start, End] date range.
//
// Examples:
//   - A balance record's configured range: Mar 1 - Mar 31
//   - A quota week: Monday Mar 10 - Sunday Mar 16
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod builds a period and rejects End before Start.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate returns ErrInvalidPeriod when End is before Start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return &PeriodError{Period: p, Err: ErrMissingDate}
	}
	if p.End.Before(p.Start) {
		return &PeriodError{Period: p, Err: ErrInvalidPeriod}
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return IsWithin(t, p.Start, p.End)
}

// Covers returns true if other lies entirely inside p.
func (p Period) Covers(other Period) bool {
	return p.Contains(other.Start) && p.Contains(other.End)
}

// Overlaps returns true if the two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Length is the number of days in the period, both ends included.
func (p Period) Length() int {
	return DaysBetween(p.Start, p.End) + 1
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// WEEK WINDOWING - Monday..Sunday (ISO week)
// =============================================================================

// StartOfWeek returns the Monday on or before date.
func StartOfWeek(date TimePoint) TimePoint {
	// time.Weekday counts from Sunday = 0; shift so Monday = 0.
	offset := (int(date.Weekday()) + 6) % 7
	return date.AddDays(-offset)
}

// WeekOf returns the Monday..Sunday window that contains date.
func WeekOf(date TimePoint) Period {
	start := StartOfWeek(date)
	return Period{Start: start, End: start.AddDays(6)}
}

// NextWeek returns the week following p's start week.
func (p Period) NextWeek() Period {
	return WeekOf(StartOfWeek(p.Start).AddDays(7))
}

// WeeksIn returns every week whose Monday falls inside p, in order.
func (p Period) WeeksIn() []Period {
	var weeks []Period
	w := WeekOf(p.Start)
	if w.Start.Before(p.Start) {
		w = w.NextWeek()
	}
	for p.Contains(w.Start) {
		weeks = append(weeks, w)
		w = w.NextWeek()
	}
	return weeks
}

// ISOWeek returns the ISO year and week number of the period start.
func (p Period) ISOWeek() (year, week int) {
	return p.Start.Time.ISOWeek()
}

// StartOfMonth and EndOfMonth are used for default record ranges.
func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return NewTimePoint(year, month+1, 1).AddDays(-1)
}

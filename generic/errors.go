/*
errors.go - Error types for calendar primitives

USAGE:
  if errors.Is(err, generic.ErrInvalidPeriod) {
      // end before start
  }

SEE ALSO:
  - saldo/errors.go: Engine errors
  - extras/errors.go: Service errors
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrMissingDate is returned when a period bound is the zero date.
	ErrMissingDate = errors.New("missing date")

	// ErrInvalidDate is returned when a date string cannot be parsed.
	ErrInvalidDate = errors.New("invalid date (use YYYY-MM-DD)")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// PeriodError carries the offending period.
type PeriodError struct {
	Period Period
	Err    error
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Period)
}

func (e *PeriodError) Unwrap() error { return e.Err }

// DateError carries the raw input that failed to parse.
type DateError struct {
	Input string
	Err   error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", e.Input)
}

func (e *DateError) Unwrap() error { return ErrInvalidDate }

/*
errors.go - Error types for the balance engine

ERROR CATEGORIES:
  1. Validation errors - negative counts, bad periods, empty requests
  2. Lookup errors     - records or requests missing from a store
  3. Data quality      - overlapping balance records for one sector

NOT AN ERROR:
  A week without a matching balance record is reported as the NoRecord
  value (see consumption.go), never as an error. Callers must be able to
  tell "no data" from "zero" without relying on control flow.

USAGE:
  var vErr *saldo.ValidationError
  if errors.As(err, &vErr) {
      fmt.Printf("fix field %s\n", vErr.Field)
  }
*/
package saldo

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrNoWorkDays is returned when a request has no work days to evaluate.
	ErrNoWorkDays = errors.New("request has no work days")

	// ErrOverlappingPeriod is returned when a new balance record would
	// overlap an existing record of the same sector.
	ErrOverlappingPeriod = errors.New("balance period overlaps an existing record")

	// ErrRecordNotFound is returned when a balance record id is unknown.
	ErrRecordNotFound = errors.New("balance record not found")

	// ErrRequestNotFound is returned when a request id is unknown.
	ErrRequestNotFound = errors.New("extra request not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s: must be >= 0, got %s", e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// OverlapError describes two records of one sector whose periods intersect.
type OverlapError struct {
	Sector     string
	RecordID   string
	ExistingID string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("balance period for sector %q overlaps record %s", e.Sector, e.ExistingID)
}

func (e *OverlapError) Unwrap() error {
	return ErrOverlappingPeriod
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNoWorkDays)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}

// IsConflict returns true if the error reports conflicting stored data.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOverlappingPeriod)
}

package extras

import (
	"errors"
	"fmt"

	"github.com/warp/extras-engine/saldo"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the request's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrLockTimeout is returned when the sector-week lock could not be taken
	// before the wait deadline.
	ErrLockTimeout = errors.New("timed out waiting for sector-week lock")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// TransitionError reports a rejected status change.
type TransitionError struct {
	RequestID string
	From      saldo.Status
	To        saldo.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("request %s: cannot move from %s to %s", e.RequestID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// LockError reports a lock that could not be acquired.
type LockError struct {
	Key string
	Err error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lock %s: %v", e.Key, e.Err)
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return saldo.IsClientError(err)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return saldo.IsNotFound(err)
}

// IsConflict returns true if the request clashes with stored state.
func IsConflict(err error) bool {
	return saldo.IsConflict(err) || errors.Is(err, ErrInvalidTransition)
}

// IsUnavailable returns true if the operation may succeed when retried.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

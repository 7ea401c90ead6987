/*
errors.go - Error taxonomy for the attendance engine

PURPOSE:
  All error types in one place. Validation rejections are NOT errors: they
  are *Rejection values returned alongside a nil error (see validator.go).
  What remains here is infrastructure and programming failures.

ERROR CATEGORIES:
  1. Infrastructure - Store unreachable, append conflicts, location capture
     failures. Retryable by the caller.
  2. Client input   - Unknown punch type, malformed dates.
  3. Not found      - Unknown employee pay profile.
  4. Invariant      - A stored ledger that breaks the day invariants. Fatal
     for the request; never silently repaired.

USAGE:
  result, err := svc.RegisterPunch(ctx, ...)
  if attendance.IsRetryable(err) {
      // 503, the UI may offer "try again"
  }

SEE ALSO:
  - validator.go: Rejection reasons
  - service.go: Where each category is produced
*/
package attendance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStoreUnavailable is returned when the punch store cannot be read or
	// written. Always retryable.
	ErrStoreUnavailable = errors.New("punch store unavailable")

	// ErrConcurrentPunch is returned by Store.AppendPunch when another punch
	// was appended to the same day after the caller's read.
	ErrConcurrentPunch = errors.New("concurrent punch on the same day")

	// ErrLocationUnavailable is returned when no usable GPS fix could be
	// captured. Surfaced before validation is attempted.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrLedgerCorrupt is returned when stored punches break the day
	// invariants (duplicate types, non-prefix order, unordered timestamps).
	ErrLedgerCorrupt = errors.New("day ledger invariant violated")

	// ErrUnknownPunchType is returned for punch names outside the enum.
	ErrUnknownPunchType = errors.New("unknown punch type")

	// ErrEmployeeNotFound is returned when no pay profile exists.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrInvalidSettings is returned for malformed tenant settings.
	ErrInvalidSettings = errors.New("invalid tenant settings")

	// ErrInvalidDate is returned for a day that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StoreError wraps a failed store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// LedgerError describes which invariant a stored ledger broke.
type LedgerError struct {
	Index  int
	Punch  Punch
	Detail string
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("day ledger invariant violated at punch %d (%s %s): %s",
		e.Index, e.Punch.ID, e.Punch.Type, e.Detail)
}

func (e *LedgerError) Unwrap() error {
	return ErrLedgerCorrupt
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrConcurrentPunch) ||
		errors.Is(err, ErrLocationUnavailable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownPunchType) ||
		errors.Is(err, ErrInvalidSettings) ||
		errors.Is(err, ErrInvalidDate)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound)
}

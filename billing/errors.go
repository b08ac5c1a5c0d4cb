/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers should use errors.Is / the helper predicates rather than
  comparing messages.

ERROR CATEGORIES:
  1. Not-found errors - referenced group/student/payment missing
  2. Data availability - the backing store failed mid-computation
  3. Generation conflicts - duplicate cycle payment rejected by the store

POLICY (matters for callers):
  - A group with no billing configuration is NOT an error: the resolver
    degrades to "nothing owed" and the calculator short-circuits.
  - DataUnavailableError propagates to single-student callers; batch
    aggregation callers map it to "assume en_attente, amount 0" so one bad
    row does not abort a dashboard rollup.
  - ErrDuplicateCyclePayment from a store insert means another writer won
    the race for the same cycle; the generator treats it as "already
    created" and reports no new record.
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrGroupNotFound is returned when a referenced group doesn't exist.
	ErrGroupNotFound = errors.New("group not found")

	// ErrStudentNotFound is returned when a referenced student doesn't exist.
	ErrStudentNotFound = errors.New("student not found")

	// ErrPaymentNotFound is returned when a referenced payment doesn't exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDataUnavailable is returned when attendance/session/payment data
	// cannot be read from the store.
	ErrDataUnavailable = errors.New("billing data unavailable")

	// ErrDuplicateCyclePayment is returned by stores that enforce the
	// (student, group, cycle) uniqueness constraint when an insert loses the
	// race. The generator treats this as idempotent success.
	ErrDuplicateCyclePayment = errors.New("payment already exists for cycle")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DataUnavailableError wraps a store failure with the lookup that failed.
type DataUnavailableError struct {
	Op        string // e.g. "list sessions", "list payments"
	StudentID StudentID
	GroupID   GroupID
	Err       error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%s for student %q in group %q: %v", e.Op, e.StudentID, e.GroupID, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return ErrDataUnavailable }

func unavailable(op string, studentID StudentID, groupID GroupID, err error) error {
	return &DataUnavailableError{Op: op, StudentID: studentID, GroupID: groupID, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDataUnavailable reports whether the error is a store availability
// failure that batch callers should absorb.
func IsDataUnavailable(err error) bool {
	return errors.Is(err, ErrDataUnavailable)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

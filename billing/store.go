/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the contracts between the billing engine and the data store. The
  engine is read-mostly: sessions, attendance, groups and payments are read;
  the ONLY write the engine itself performs is the generator's pending-
  payment insert. Status updates (mark paid, overdue sweep) are external
  actions exposed here for the thin API layer.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - billing/store/memory.go: In-memory for testing

RACE GUARD CONTRACT:
  InsertPendingPayment MUST reject a second payment for the same
  (student, group, cycle) with ErrDuplicateCyclePayment. The sqlite store
  enforces this with a unique index; the memory store checks under its
  write lock. The generator additionally serializes per (student, group).
*/
package billing

import (
	"context"
	"time"
)

// =============================================================================
// READ CONTRACTS
// =============================================================================

// SessionReader supplies a group's sessions, ordered by (date, id)
// ascending.
type SessionReader interface {
	// ListCompletedSessions returns the group's completed sessions,
	// chronologically ordered.
	ListCompletedSessions(ctx context.Context, groupID GroupID) ([]Session, error)
}

// AttendanceReader supplies per-student presence.
type AttendanceReader interface {
	// ListPresentSessions returns the subset of sessionIDs for which the
	// student was marked present.
	ListPresentSessions(ctx context.Context, studentID StudentID, sessionIDs []SessionID) (map[SessionID]bool, error)
}

// GroupReader supplies group configuration and membership.
type GroupReader interface {
	GetGroup(ctx context.Context, groupID GroupID) (Group, error)
	ListGroups(ctx context.Context) ([]Group, error)
	ListGroupsForStudent(ctx context.Context, studentID StudentID) ([]Group, error)
	ListStudentsInGroup(ctx context.Context, groupID GroupID) ([]StudentID, error)
}

// StudentReader supplies directory records (name/contact) for reminder
// eligibility.
type StudentReader interface {
	GetStudent(ctx context.Context, studentID StudentID) (Student, error)
}

// =============================================================================
// PAYMENT CONTRACTS
// =============================================================================

// PaymentStore reads and writes payment records. The engine never deletes
// payments.
type PaymentStore interface {
	// ListPayments returns the (student, group) payment history, oldest
	// first.
	ListPayments(ctx context.Context, studentID StudentID, groupID GroupID) ([]Payment, error)

	// InsertPendingPayment persists a new PENDING payment. Returns
	// ErrDuplicateCyclePayment when a record for the same
	// (student, group, cycle) already exists.
	InsertPendingPayment(ctx context.Context, p Payment) error

	// SetPaymentStatus transitions a payment's status. paidAt is recorded
	// only for transitions to PAID.
	SetPaymentStatus(ctx context.Context, id PaymentID, status PaymentStatus, paidAt *time.Time) error

	// ListPaymentsByStatus returns all payments in any of the given
	// statuses, across students and groups, oldest due date first.
	ListPaymentsByStatus(ctx context.Context, statuses ...PaymentStatus) ([]Payment, error)
}

// =============================================================================
// COMPOSITE
// =============================================================================

// Store is the full contract the engine and its API layer run against.
type Store interface {
	SessionReader
	AttendanceReader
	GroupReader
	StudentReader
	PaymentStore
}

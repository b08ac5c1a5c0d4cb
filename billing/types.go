/*
Package billing provides the payment-status / billing-cycle engine.

PURPOSE:
  This package contains the types and algorithms that decide, for a student
  in a group, which billing cycle they are in, how much they owe, and
  whether a new pending payment must be materialized. Billing is
  usage-driven: a cycle is a fixed-size block of attended sessions, and a
  billing event fires when the block fills up - not on a calendar date.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A monetary amount backed by decimal.Decimal
  - Group: Billing configuration (per-session or per-cycle fee)
  - Session/Attendance: What the scheduling subsystem records
  - Payment: A billing record for one completed cycle
  - PaymentState: The three-valued student status with a total order
  - PaymentStatusSnapshot: The derived, never-persisted answer

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing student/group IDs
  3. Freshness: Snapshots are computed on every call, never cached
  4. Tolerance: Empty input (no sessions, no payments) is a normal state

SEE ALSO:
  - policy.go: Fee policy resolution
  - cycle.go: Cycle accumulation
  - calculator.go: The status decision core
  - generator.go: Idempotent pending-payment creation
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Monetary amount (single currency, decimal precision)
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money      { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int) Money   { return Money{Value: decimal.NewFromInt(int64(value))} }
func ZeroMoney() Money                  { return Money{Value: decimal.Zero} }

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money        { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money        { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) MulInt(n int) Money       { return Money{Value: m.Value.Mul(decimal.NewFromInt(int64(n)))} }
func (m Money) IsZero() bool             { return m.Value.IsZero() }
func (m Money) IsPositive() bool         { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool       { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool { return m.Value.GreaterThan(o.Value) }
func (m Money) String() string           { return m.Value.StringFixed(2) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StudentID string
type GroupID string
type SessionID string
type PaymentID string
type TeacherID string

// =============================================================================
// GROUP - Billing policy configuration
// =============================================================================

// Group carries the billing-relevant configuration of a tutoring group.
// At least one of SessionFee/MonthlyFee is expected to be set; when neither
// is, the engine treats the group as "nothing owed" rather than failing.
type Group struct {
	ID   GroupID
	Name string

	// SessionFee bills every attended session (cycle length collapses to 1).
	// Takes precedence over MonthlyFee when both are set.
	SessionFee *Money

	// MonthlyFee bills once per completed cycle of CycleLength attended
	// sessions. The whole amount is billed when the threshold is reached;
	// it is never divided per session.
	MonthlyFee *Money

	// CycleLength is the attended-session count that completes a cycle.
	// Zero means "use the default" (DefaultCycleLength).
	CycleLength int

	TeacherID TeacherID
}

// DefaultCycleLength is the cycle size used when a group does not
// configure one.
const DefaultCycleLength = 4

// =============================================================================
// SESSIONS & ATTENDANCE - Produced by the excluded scheduling subsystem
// =============================================================================

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is a single group meeting. Only completed sessions count toward
// billing.
type Session struct {
	ID      SessionID
	GroupID GroupID
	Date    time.Time
	Status  SessionStatus
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
	AttendanceLate    AttendanceStatus = "late"
)

// Attendance is one student's outcome for one session. Only Present
// increments the billing counter.
type Attendance struct {
	SessionID SessionID
	StudentID StudentID
	Status    AttendanceStatus
}

// =============================================================================
// PAYMENT - One billing record per completed cycle
// =============================================================================

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"
)

// Payment records the billing of one completed cycle for a student in a
// group. CycleIndex is explicit (0-based) so that coverage checks never
// depend on record creation order alone.
type Payment struct {
	ID        PaymentID
	StudentID StudentID
	GroupID   GroupID

	// CycleIndex is the 0-based completed cycle this payment covers.
	// Negative means unknown (legacy row); the ledger view falls back to
	// positional order for those.
	CycleIndex int

	Amount    Money
	Status    PaymentStatus
	DueDate   time.Time
	PaidAt    *time.Time
	Notes     string
	CreatedBy TeacherID
	CreatedAt time.Time
}

// IsSettled reports whether this payment no longer represents an
// outstanding obligation.
func (p Payment) IsSettled() bool { return p.Status == PaymentPaid }

// IsOwed reports whether this payment counts as a recognized (but possibly
// unsettled) obligation: pending or paid. Overdue records are excluded;
// elapsed cycles re-enter arrears instead.
func (p Payment) IsOwed() bool { return p.Status == PaymentPaid || p.Status == PaymentPending }

// =============================================================================
// PAYMENT STATE - Three-valued student status with a total order
// =============================================================================

// PaymentState is the per-student, per-group billing status. The integer
// values define the total order used by worst-status folds: a higher value
// is worse. This ordering is defined ONCE, here, and used everywhere.
type PaymentState int

const (
	// StateAJour: up to date - no unsettled payment obligation.
	StateAJour PaymentState = iota

	// StateEnAttente: a pending payment exists and its due date has not
	// elapsed.
	StateEnAttente

	// StateEnRetard: a completed cycle has no settled payment, or a pending
	// payment's due date has elapsed.
	StateEnRetard
)

func (s PaymentState) String() string {
	switch s {
	case StateAJour:
		return "a_jour"
	case StateEnAttente:
		return "en_attente"
	case StateEnRetard:
		return "en_retard"
	default:
		return "unknown"
	}
}

// Worse reports whether s is strictly worse than other.
func (s PaymentState) Worse(other PaymentState) bool { return s > other }

// WorstState folds states to the maximum by priority. Empty input is
// StateAJour.
func WorstState(states ...PaymentState) PaymentState {
	worst := StateAJour
	for _, s := range states {
		if s.Worse(worst) {
			worst = s
		}
	}
	return worst
}

// =============================================================================
// SNAPSHOT - Derived status, computed fresh on every call
// =============================================================================

// PaymentStatusSnapshot is the answer to "where does this student stand in
// this group?". It is never persisted and never cached across attendance
// mutations.
type PaymentStatusSnapshot struct {
	StudentID StudentID
	GroupID   GroupID

	State     PaymentState
	AmountDue Money

	// AttendedSessions / TotalSessionsInCycle describe the cycle being
	// reported: the partial current cycle, or the full pending cycle when a
	// pending payment is being awaited.
	AttendedSessions     int
	TotalSessionsInCycle int

	// NextDueDate is the due date of the payment being awaited, when one
	// exists.
	NextDueDate *time.Time

	// CompletedCycles is the number of fully attended cycles so far.
	CompletedCycles int
}

// =============================================================================
// STUDENT - Directory record (name/contact for reminder eligibility)
// =============================================================================

type Student struct {
	ID          StudentID
	Name        string
	ContactInfo string
}

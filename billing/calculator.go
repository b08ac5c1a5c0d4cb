/*
calculator.go - The status decision core

PURPOSE:
  Composes fee policy, cycle accumulation and the payment ledger into one
  answer: is this student up to date, awaiting a payment, or overdue, and
  for how much?

DECISION ORDER (evaluated top to bottom):
  1. Non-billable policy            -> a_jour, nothing owed
  2. No completed cycle yet         -> a_jour, partial-cycle progress
  3. Latest completed cycle PAID    -> a_jour, next-cycle progress
  4. PENDING, due date not elapsed  -> en_attente, full pending cycle shown
  5. PENDING/OVERDUE elapsed, or no
     payment for a completed cycle  -> en_retard; arrears accumulate
                                       across ALL unpaid completed cycles

ARREARS:
  AmountDue in en_retard is amountPerCycle x (completedCycles -
  settledCycles): every completed cycle without a PAID record is owed, not
  just the latest one.

SIDE EFFECTS:
  None. This is a pure read/compute path, safe for arbitrary parallel
  invocation. Store failures surface as DataUnavailableError; batch callers
  absorb those (see aggregate.go), direct callers get the error.
*/
package billing

import (
	"context"
	"time"
)

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator computes payment-status snapshots. Zero-value Now means
// time.Now; override in tests.
type Calculator struct {
	Store Store
	Now   func() time.Time
}

func NewCalculator(store Store) *Calculator {
	return &Calculator{Store: store}
}

func (c *Calculator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// StudentStatus computes the fresh payment-status snapshot for a student
// in a group. Never cached; tolerant of empty input (zero sessions, zero
// payments are normal states, not errors).
func (c *Calculator) StudentStatus(ctx context.Context, studentID StudentID, groupID GroupID) (PaymentStatusSnapshot, error) {
	group, err := c.Store.GetGroup(ctx, groupID)
	if err != nil {
		if IsNotFound(err) {
			return PaymentStatusSnapshot{}, err
		}
		return PaymentStatusSnapshot{}, unavailable("load group", studentID, groupID, err)
	}

	policy := ResolveFeePolicy(group)

	snap := PaymentStatusSnapshot{
		StudentID:            studentID,
		GroupID:              groupID,
		State:                StateAJour,
		AmountDue:            ZeroMoney(),
		TotalSessionsInCycle: policy.CycleLength,
	}

	// 1. Nothing billable: nothing owed, regardless of attendance.
	if !policy.Billable() {
		return snap, nil
	}

	progress, err := c.cycleProgress(ctx, studentID, groupID, policy)
	if err != nil {
		return PaymentStatusSnapshot{}, err
	}
	snap.CompletedCycles = progress.CompletedCycles
	snap.AttendedSessions = progress.CurrentCycleAttended

	// 2. No cycle threshold crossed yet.
	if progress.CompletedCycles == 0 {
		return snap, nil
	}

	payments, err := c.Store.ListPayments(ctx, studentID, groupID)
	if err != nil {
		return PaymentStatusSnapshot{}, unavailable("list payments", studentID, groupID, err)
	}
	ledger := NewLedgerView(payments)

	latest := ledger.CoveringCycle(progress.CompletedCycles - 1)
	now := c.now()

	switch {
	// 3. Latest completed cycle settled: up to date, show the partial next
	// cycle's progress.
	case latest != nil && latest.Status == PaymentPaid:
		return snap, nil

	// 4. Payment generated and still within its due date: awaiting. The
	// awaited cycle is complete, so it is reported full.
	case latest != nil && latest.Status == PaymentPending && !now.After(latest.DueDate):
		snap.State = StateEnAttente
		snap.AmountDue = policy.AmountPerCycle
		snap.AttendedSessions = progress.CycleLength
		due := latest.DueDate
		snap.NextDueDate = &due
		return snap, nil

	// 5. Elapsed pending/overdue payment, or no payment at all for a
	// completed cycle: overdue. Arrears cover every unsettled completed
	// cycle.
	default:
		snap.State = StateEnRetard
		snap.AmountDue = policy.AmountPerCycle.MulInt(progress.CompletedCycles - ledger.SettledCycles())
		if latest != nil {
			due := latest.DueDate
			snap.NextDueDate = &due
		}
		return snap, nil
	}
}

// cycleProgress loads attendance and folds it into cycles.
func (c *Calculator) cycleProgress(ctx context.Context, studentID StudentID, groupID GroupID, policy FeePolicy) (CycleProgress, error) {
	sessions, err := c.Store.ListCompletedSessions(ctx, groupID)
	if err != nil {
		return CycleProgress{}, unavailable("list sessions", studentID, groupID, err)
	}

	ids := make([]SessionID, 0, len(sessions))
	for _, s := range sessions {
		if s.Status == SessionCompleted {
			ids = append(ids, s.ID)
		}
	}

	present, err := c.Store.ListPresentSessions(ctx, studentID, ids)
	if err != nil {
		return CycleProgress{}, unavailable("list attendance", studentID, groupID, err)
	}

	attended := CountAttended(sessions, present)
	return AccumulateCycles(attended, policy.CycleLength), nil
}

/*
ledger.go - Read-only view over a student's payment records in a group

PURPOSE:
  Answers the coverage questions the status calculator asks: which payment
  covers a given cycle, which is the latest, how many cycles are settled.

CYCLE CORRESPONDENCE:
  Payments carry an explicit CycleIndex. Rows with a negative index
  (legacy data) fall back to positional correspondence: the Nth record by
  creation order covers the Nth completed cycle. Mixing both in one ledger
  resolves explicit indexes first.

INVARIANT (enforced by the generator, assumed here):
  At most one non-superseded payment per (student, group, cycle).
*/
package billing

import "sort"

// =============================================================================
// LEDGER VIEW
// =============================================================================

// LedgerView is an immutable view over one (student, group) payment
// history, oldest first.
type LedgerView struct {
	payments []Payment
}

// NewLedgerView builds a view over the given payments. The input is copied
// and ordered by (CreatedAt, ID) ascending.
func NewLedgerView(payments []Payment) LedgerView {
	ordered := make([]Payment, len(payments))
	copy(ordered, payments)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return LedgerView{payments: ordered}
}

// Count returns the number of payment records.
func (v LedgerView) Count() int { return len(v.payments) }

// Payments returns the ordered records (shared slice; callers must not
// mutate).
func (v LedgerView) Payments() []Payment { return v.payments }

// Latest returns the most recent payment record, or nil when the ledger is
// empty.
func (v LedgerView) Latest() *Payment {
	if len(v.payments) == 0 {
		return nil
	}
	return &v.payments[len(v.payments)-1]
}

// CoveringCycle returns the payment covering the given 0-based cycle
// index, or nil. Explicit cycle indexes win; records without one (negative
// index) are matched positionally against the cycles no explicit record
// claims.
func (v LedgerView) CoveringCycle(cycleIndex int) *Payment {
	if cycleIndex < 0 {
		return nil
	}

	// Explicit match first.
	for i := range v.payments {
		if v.payments[i].CycleIndex == cycleIndex {
			return &v.payments[i]
		}
	}

	// Positional fallback: walk legacy rows in creation order, assigning
	// them to the unclaimed cycle indexes in ascending order.
	claimed := make(map[int]bool, len(v.payments))
	for i := range v.payments {
		if v.payments[i].CycleIndex >= 0 {
			claimed[v.payments[i].CycleIndex] = true
		}
	}
	next := 0
	for i := range v.payments {
		if v.payments[i].CycleIndex >= 0 {
			continue
		}
		for claimed[next] {
			next++
		}
		if next == cycleIndex {
			return &v.payments[i]
		}
		claimed[next] = true
	}
	return nil
}

// SettledCycles returns the count of PAID records - cycles with no
// remaining obligation.
func (v LedgerView) SettledCycles() int {
	settled := 0
	for i := range v.payments {
		if v.payments[i].IsSettled() {
			settled++
		}
	}
	return settled
}

// OwedCount returns the count of records whose status is PAID or PENDING.
// Overdue records are excluded; elapsed cycles re-enter arrears.
func (v LedgerView) OwedCount() int {
	owed := 0
	for i := range v.payments {
		if v.payments[i].IsOwed() {
			owed++
		}
	}
	return owed
}

// NextUncoveredCycle returns the lowest 0-based cycle index with no
// covering payment, searching up to the given completed-cycle count.
// Returns (index, true) or (0, false) when every completed cycle is
// covered.
func (v LedgerView) NextUncoveredCycle(completedCycles int) (int, bool) {
	for idx := 0; idx < completedCycles; idx++ {
		if v.CoveringCycle(idx) == nil {
			return idx, true
		}
	}
	return 0, false
}

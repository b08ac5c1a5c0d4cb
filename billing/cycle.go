/*
cycle.go - Cycle accumulation

PURPOSE:
  Partitions a student's attended sessions, in chronological order, into
  fixed-size cycles and identifies the current (possibly partial) cycle.
  This is the pure counting core under the status calculator.

BOUNDARY RULE:
  When the attended count sits exactly on a cycle boundary (count > 0 and
  count % length == 0), the "current cycle" for display purposes is the one
  just completed - full - not an empty new one. This avoids showing "0/4
  attended" to a student right after their payment-triggering 4th session.
  The raw remainder is still exposed; Display() applies the rule.

SEE ALSO:
  - calculator.go: Which branch reports raw vs. display counts
*/
package billing

import "sort"

// =============================================================================
// CYCLE PROGRESS - Where the student stands in the cycle partition
// =============================================================================

// CycleProgress describes how a student's attended sessions partition into
// fixed-size cycles.
type CycleProgress struct {
	// CompletedCycles is floor(totalAttended / cycleLength).
	CompletedCycles int

	// CurrentCycleAttended is totalAttended mod cycleLength - the raw
	// remainder, 0 on an exact boundary.
	CurrentCycleAttended int

	// CycleLength is the size of a full cycle (always >= 1).
	CycleLength int

	// TotalAttended is the overall attended-session count.
	TotalAttended int
}

// OnBoundary reports whether the student sits exactly on a cycle boundary
// with at least one attended session.
func (p CycleProgress) OnBoundary() bool {
	return p.TotalAttended > 0 && p.CurrentCycleAttended == 0
}

// Display returns the attended/total pair to show a user, applying the
// boundary rule: on a boundary the just-completed full cycle is reported.
func (p CycleProgress) Display() (attended, total int) {
	if p.OnBoundary() {
		return p.CycleLength, p.CycleLength
	}
	return p.CurrentCycleAttended, p.CycleLength
}

// AccumulateCycles partitions an attended-session count into cycles of the
// given length. A non-positive length is treated as 1 so the arithmetic
// never divides by zero (the caller should have short-circuited
// non-billable policies before counting).
func AccumulateCycles(totalAttended, cycleLength int) CycleProgress {
	if cycleLength <= 0 {
		cycleLength = 1
	}
	if totalAttended < 0 {
		totalAttended = 0
	}
	return CycleProgress{
		CompletedCycles:      totalAttended / cycleLength,
		CurrentCycleAttended: totalAttended % cycleLength,
		CycleLength:          cycleLength,
		TotalAttended:        totalAttended,
	}
}

// =============================================================================
// ATTENDED SESSION COUNTING - From sessions + presence
// =============================================================================

// CountAttended counts the sessions the student was present at, considering
// only completed sessions. Sessions are ordered by date ascending with ties
// broken by session ID so the count walk is deterministic; the input slice
// is not modified.
func CountAttended(sessions []Session, present map[SessionID]bool) int {
	ordered := OrderSessions(sessions)
	count := 0
	for _, s := range ordered {
		if s.Status != SessionCompleted {
			continue
		}
		if present[s.ID] {
			count++
		}
	}
	return count
}

// OrderSessions returns a copy of sessions sorted by (date, id) ascending.
func OrderSessions(sessions []Session) []Session {
	ordered := make([]Session, len(sessions))
	copy(ordered, sessions)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

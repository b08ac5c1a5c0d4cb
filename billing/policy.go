/*
policy.go - Fee policy resolution

PURPOSE:
  Derives the billing unit from a group's configuration: either a
  per-session fee (bill every attended session, cycle length 1) or a
  per-cycle fee (bill every N attended sessions).

RESOLUTION RULES:
  1. SessionFee set and > 0:  amount = SessionFee, cycle length = 1
  2. MonthlyFee set and > 0:  amount = MonthlyFee, cycle length = configured
     (default 4). The WHOLE amount is billed once the threshold is reached;
     it is never divided per session.
  3. Neither: amount = 0, cycle length = 4. Degenerate - downstream
     short-circuits to "nothing owed" instead of dividing by zero.

No side effects; pure function of the group's billing fields.
*/
package billing

// =============================================================================
// FEE POLICY - The billing unit for a group
// =============================================================================

// FeePolicy is the resolved billing unit: how much is owed per cycle, and
// how many attended sessions complete a cycle.
type FeePolicy struct {
	AmountPerCycle Money
	CycleLength    int
}

// Billable reports whether this policy can produce a charge at all.
func (p FeePolicy) Billable() bool { return p.AmountPerCycle.IsPositive() }

// ResolveFeePolicy derives the billing unit from a group's configuration.
// A per-session fee takes precedence and collapses the cycle to a single
// session. CycleLength is always >= 1 in the result.
func ResolveFeePolicy(group Group) FeePolicy {
	if group.SessionFee != nil && group.SessionFee.IsPositive() {
		return FeePolicy{AmountPerCycle: *group.SessionFee, CycleLength: 1}
	}

	length := group.CycleLength
	if length <= 0 {
		length = DefaultCycleLength
	}

	if group.MonthlyFee != nil && group.MonthlyFee.IsPositive() {
		return FeePolicy{AmountPerCycle: *group.MonthlyFee, CycleLength: length}
	}

	// No billing configured. Not an error: the calculator short-circuits to
	// "nothing owed" on a non-billable policy.
	return FeePolicy{AmountPerCycle: ZeroMoney(), CycleLength: DefaultCycleLength}
}

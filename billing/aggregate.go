/*
aggregate.go - Fan-out/fold rollups over many status computations

PURPOSE:
  Dashboard and batch callers need the calculator's answer for many
  (student, group) pairs at once: a student's overall standing across
  groups, a group's revenue picture, the global picture. Each status
  computation is independent and pure, so the rollups fan out workers and
  fold their partial results at the end - no shared mutable counters.

FAILURE POLICY (documented batch default):
  A per-pair DataUnavailableError is absorbed as "assume en_attente,
  amount 0" and counted in Unavailable, so one bad row never aborts a
  whole dashboard rollup. Single-pair callers should use the Calculator
  directly and get the error.

WORST-STATUS RULE:
  The overall status across groups is the maximum by the PaymentState
  total order (a_jour < en_attente < en_retard); amounts due sum.
*/
package billing

import (
	"context"
	"sync"
)

// defaultFanOut bounds concurrent status computations per rollup.
const defaultFanOut = 8

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator folds per-student snapshots into rollups. Zero-value
// MaxConcurrent means defaultFanOut.
type Aggregator struct {
	Calc          *Calculator
	Store         Store
	MaxConcurrent int
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{Calc: NewCalculator(store), Store: store}
}

func (a *Aggregator) fanOut() int {
	if a.MaxConcurrent > 0 {
		return a.MaxConcurrent
	}
	return defaultFanOut
}

// =============================================================================
// STUDENT OVERALL - Worst status across a student's groups
// =============================================================================

// StudentOverall is a student's standing folded across every group they
// are enrolled in.
type StudentOverall struct {
	StudentID      StudentID
	State          PaymentState
	TotalAmountDue Money

	// Groups holds the per-group snapshots that were folded, in the
	// store's group order. Pairs whose data was unavailable appear with
	// the assumed en_attente snapshot.
	Groups []PaymentStatusSnapshot

	// Unavailable counts groups whose snapshot could not be computed.
	Unavailable int
}

// StudentOverallStatus computes the worst status and total amount due for
// one student across all their groups.
func (a *Aggregator) StudentOverallStatus(ctx context.Context, studentID StudentID) (StudentOverall, error) {
	groups, err := a.Store.ListGroupsForStudent(ctx, studentID)
	if err != nil {
		return StudentOverall{}, unavailable("list groups", studentID, "", err)
	}

	snaps, unavail := a.snapshots(ctx, studentID, groups)

	overall := StudentOverall{
		StudentID:      studentID,
		State:          StateAJour,
		TotalAmountDue: ZeroMoney(),
		Groups:         snaps,
		Unavailable:    unavail,
	}
	for _, s := range snaps {
		overall.State = WorstState(overall.State, s.State)
		overall.TotalAmountDue = overall.TotalAmountDue.Add(s.AmountDue)
	}
	return overall, nil
}

// snapshots fans out one calculator call per group and collects results in
// group order. Unavailable pairs degrade to the assumed en_attente
// snapshot.
func (a *Aggregator) snapshots(ctx context.Context, studentID StudentID, groups []Group) ([]PaymentStatusSnapshot, int) {
	snaps := make([]PaymentStatusSnapshot, len(groups))
	unavailCount := 0

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, a.fanOut())

	for i, g := range groups {
		wg.Add(1)
		go func(i int, groupID GroupID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			snap, err := a.Calc.StudentStatus(ctx, studentID, groupID)
			if err != nil {
				// Batch default: assume en_attente, nothing summed.
				snap = PaymentStatusSnapshot{
					StudentID: studentID,
					GroupID:   groupID,
					State:     StateEnAttente,
					AmountDue: ZeroMoney(),
				}
				mu.Lock()
				unavailCount++
				mu.Unlock()
			}
			snaps[i] = snap
		}(i, g.ID)
	}
	wg.Wait()

	return snaps, unavailCount
}

// =============================================================================
// GROUP & GLOBAL ROLLUPS
// =============================================================================

// GroupStats is the revenue/standing rollup for one group.
type GroupStats struct {
	GroupID  GroupID
	Students int

	AJour     int
	EnAttente int
	EnRetard  int

	// OutstandingDue sums AmountDue across the group's students.
	OutstandingDue Money

	// Collected sums the group's PAID payment records.
	Collected Money

	// PendingAmount / OverdueAmount sum the group's unsettled payment
	// records by status.
	PendingAmount Money
	OverdueAmount Money

	Unavailable int
}

// groupPartial is one worker's contribution to a group rollup.
type groupPartial struct {
	state       PaymentState
	due         Money
	collected   Money
	pending     Money
	overdue     Money
	unavailable bool
}

// GroupRollup computes the rollup for every student in a group.
func (a *Aggregator) GroupRollup(ctx context.Context, groupID GroupID) (GroupStats, error) {
	students, err := a.Store.ListStudentsInGroup(ctx, groupID)
	if err != nil {
		return GroupStats{}, unavailable("list students", "", groupID, err)
	}

	partials := make([]groupPartial, len(students))

	var wg sync.WaitGroup
	sem := make(chan struct{}, a.fanOut())

	for i, studentID := range students {
		wg.Add(1)
		go func(i int, studentID StudentID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			partials[i] = a.studentPartial(ctx, studentID, groupID)
		}(i, studentID)
	}
	wg.Wait()

	stats := GroupStats{
		GroupID:        groupID,
		Students:       len(students),
		OutstandingDue: ZeroMoney(),
		Collected:      ZeroMoney(),
		PendingAmount:  ZeroMoney(),
		OverdueAmount:  ZeroMoney(),
	}
	for _, p := range partials {
		if p.unavailable {
			stats.Unavailable++
		}
		switch p.state {
		case StateAJour:
			stats.AJour++
		case StateEnAttente:
			stats.EnAttente++
		case StateEnRetard:
			stats.EnRetard++
		}
		stats.OutstandingDue = stats.OutstandingDue.Add(p.due)
		stats.Collected = stats.Collected.Add(p.collected)
		stats.PendingAmount = stats.PendingAmount.Add(p.pending)
		stats.OverdueAmount = stats.OverdueAmount.Add(p.overdue)
	}
	return stats, nil
}

// studentPartial computes one student's contribution: status snapshot plus
// their payment sums in the group.
func (a *Aggregator) studentPartial(ctx context.Context, studentID StudentID, groupID GroupID) groupPartial {
	p := groupPartial{
		due:       ZeroMoney(),
		collected: ZeroMoney(),
		pending:   ZeroMoney(),
		overdue:   ZeroMoney(),
	}

	snap, err := a.Calc.StudentStatus(ctx, studentID, groupID)
	if err != nil {
		p.state = StateEnAttente
		p.unavailable = true
	} else {
		p.state = snap.State
		p.due = snap.AmountDue
	}

	payments, err := a.Store.ListPayments(ctx, studentID, groupID)
	if err != nil {
		p.unavailable = true
		return p
	}
	for _, pay := range payments {
		switch pay.Status {
		case PaymentPaid:
			p.collected = p.collected.Add(pay.Amount)
		case PaymentPending:
			p.pending = p.pending.Add(pay.Amount)
		case PaymentOverdue:
			p.overdue = p.overdue.Add(pay.Amount)
		}
	}
	return p
}

// GlobalStats is the platform-wide rollup: group rollups folded together.
type GlobalStats struct {
	Groups         int
	Students       int
	AJour          int
	EnAttente      int
	EnRetard       int
	OutstandingDue Money
	Collected      Money
	PendingAmount  Money
	OverdueAmount  Money
	Unavailable    int
}

// GlobalRollup folds every group's rollup into the platform-wide picture.
func (a *Aggregator) GlobalRollup(ctx context.Context) (GlobalStats, error) {
	groups, err := a.Store.ListGroups(ctx)
	if err != nil {
		return GlobalStats{}, unavailable("list groups", "", "", err)
	}

	global := GlobalStats{
		OutstandingDue: ZeroMoney(),
		Collected:      ZeroMoney(),
		PendingAmount:  ZeroMoney(),
		OverdueAmount:  ZeroMoney(),
	}
	for _, g := range groups {
		stats, err := a.GroupRollup(ctx, g.ID)
		if err != nil {
			global.Unavailable++
			continue
		}
		global.Groups++
		global.Students += stats.Students
		global.AJour += stats.AJour
		global.EnAttente += stats.EnAttente
		global.EnRetard += stats.EnRetard
		global.OutstandingDue = global.OutstandingDue.Add(stats.OutstandingDue)
		global.Collected = global.Collected.Add(stats.Collected)
		global.PendingAmount = global.PendingAmount.Add(stats.PendingAmount)
		global.OverdueAmount = global.OverdueAmount.Add(stats.OverdueAmount)
		global.Unavailable += stats.Unavailable
	}
	return global, nil
}

/*
generator.go - Idempotent pending-payment materialization

PURPOSE:
  The first time a cycle's attendance threshold is reached with no payment
  record covering it, materialize exactly one PENDING payment. Safe to call
  repeatedly - once per attendance-marking event AND again from a batch
  sweep - without ever producing a second record for the same cycle.

IDEMPOTENCY:
  Two independent guards, both required:
  1. Per-(student, group) keyed mutex: concurrent calls in THIS process are
     serialized, so both cannot observe "no payment yet".
  2. Store uniqueness on (student, group, cycle): a concurrent writer in
     ANOTHER process loses the insert with ErrDuplicateCyclePayment, which
     the generator reports as "nothing created" rather than a failure.

DUE DATE:
  Creation time plus a configured grace period (default 7 days).
*/
package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultGracePeriod is the time a generated payment stays pending before
// it can be considered overdue.
const DefaultGracePeriod = 7 * 24 * time.Hour

// =============================================================================
// KEYED MUTEX - Serializes generator calls per (student, group)
// =============================================================================

type pairKey struct {
	StudentID StudentID
	GroupID   GroupID
}

// keyedMutex hands out one mutex per key. Entries are never evicted; the
// key space is bounded by enrollment so this stays small.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[pairKey]*sync.Mutex
}

func (k *keyedMutex) get(key pairKey) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[pairKey]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator materializes pending payments when cycle thresholds are
// crossed. Zero-value GracePeriod means DefaultGracePeriod; zero-value Now
// means time.Now.
type Generator struct {
	Store       Store
	GracePeriod time.Duration
	Now         func() time.Time

	locks keyedMutex
}

func NewGenerator(store Store) *Generator {
	return &Generator{Store: store}
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Generator) grace() time.Duration {
	if g.GracePeriod > 0 {
		return g.GracePeriod
	}
	return DefaultGracePeriod
}

// CreatePendingPaymentIfNeeded creates one PENDING payment for the next
// uncovered completed cycle, if any. Returns true only when a new record
// was created. Losing the cross-process insert race reports (false, nil).
func (g *Generator) CreatePendingPaymentIfNeeded(ctx context.Context, studentID StudentID, groupID GroupID, actorID TeacherID) (bool, error) {
	lock := g.locks.get(pairKey{StudentID: studentID, GroupID: groupID})
	lock.Lock()
	defer lock.Unlock()

	group, err := g.Store.GetGroup(ctx, groupID)
	if err != nil {
		if IsNotFound(err) {
			return false, err
		}
		return false, unavailable("load group", studentID, groupID, err)
	}

	policy := ResolveFeePolicy(group)
	if !policy.Billable() {
		return false, nil
	}

	calc := &Calculator{Store: g.Store, Now: g.Now}
	progress, err := calc.cycleProgress(ctx, studentID, groupID, policy)
	if err != nil {
		return false, err
	}
	if progress.CompletedCycles == 0 {
		return false, nil
	}

	payments, err := g.Store.ListPayments(ctx, studentID, groupID)
	if err != nil {
		return false, unavailable("list payments", studentID, groupID, err)
	}
	ledger := NewLedgerView(payments)

	// Idempotency gate: every completed cycle already has a record.
	if ledger.Count() >= progress.CompletedCycles {
		return false, nil
	}

	cycleIndex, ok := ledger.NextUncoveredCycle(progress.CompletedCycles)
	if !ok {
		return false, nil
	}

	now := g.now()
	payment := Payment{
		ID:         PaymentID(uuid.NewString()),
		StudentID:  studentID,
		GroupID:    groupID,
		CycleIndex: cycleIndex,
		Amount:     policy.AmountPerCycle,
		Status:     PaymentPending,
		DueDate:    now.Add(g.grace()),
		CreatedBy:  actorID,
		CreatedAt:  now,
	}

	if err := g.Store.InsertPendingPayment(ctx, payment); err != nil {
		// Another writer covered this cycle first. That is the uniqueness
		// guard doing its job, not a failure.
		if errors.Is(err, ErrDuplicateCyclePayment) {
			return false, nil
		}
		return false, unavailable("insert payment", studentID, groupID, err)
	}
	return true, nil
}

// GenerateForGroup runs the generator for every student enrolled in the
// group and returns how many new payments were created. Per-student data
// failures are skipped, not fatal - a batch sweep must not abort on one
// bad row.
func (g *Generator) GenerateForGroup(ctx context.Context, groupID GroupID, actorID TeacherID) (int, error) {
	students, err := g.Store.ListStudentsInGroup(ctx, groupID)
	if err != nil {
		return 0, unavailable("list students", "", groupID, err)
	}

	created := 0
	for _, studentID := range students {
		ok, err := g.CreatePendingPaymentIfNeeded(ctx, studentID, groupID, actorID)
		if err != nil {
			if IsDataUnavailable(err) {
				continue
			}
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

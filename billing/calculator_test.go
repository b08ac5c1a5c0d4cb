package billing_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/coursia/billing-engine/billing"
)

// addPayment seeds a payment record directly through the store, bypassing
// the generator, so tests control cycle index, status and due date.
func (f *fixture) addPayment(studentID billing.StudentID, groupID billing.GroupID, cycleIndex int, amount int, status billing.PaymentStatus, due time.Time) billing.PaymentID {
	id := billing.PaymentID(fmt.Sprintf("pay-%s-%s-%d", studentID, groupID, cycleIndex))
	p := billing.Payment{
		ID:         id,
		StudentID:  studentID,
		GroupID:    groupID,
		CycleIndex: cycleIndex,
		Amount:     money(amount),
		Status:     billing.PaymentPending,
		DueDate:    due,
		CreatedAt:  frozenNow.Add(time.Duration(cycleIndex) * time.Minute),
	}
	if err := f.store.InsertPendingPayment(context.Background(), p); err != nil {
		panic(err)
	}
	if status != billing.PaymentPending {
		var paidAt *time.Time
		if status == billing.PaymentPaid {
			t := frozenNow
			paidAt = &t
		}
		if err := f.store.SetPaymentStatus(context.Background(), id, status, paidAt); err != nil {
			panic(err)
		}
	}
	return id
}

// =============================================================================
// STATUS CALCULATOR TESTS
// =============================================================================

func TestStudentStatus_NoSessionsIsUpToDate(t *testing.T) {
	// GIVEN: A billable group where the student has attended nothing
	// WHEN: Computing the status
	// THEN: a_jour with zero owed - empty input is a normal state

	f := newFixture()
	f.monthlyFeeGroup("g1", 200, 4)
	f.store.Enroll("g1", "s1")

	snap, err := f.calc.StudentStatus(context.Background(), "s1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != billing.StateAJour {
		t.Errorf("state: got %v, want a_jour", snap.State)
	}
	if !snap.AmountDue.IsZero() {
		t.Errorf("amount: got %v, want 0", snap.AmountDue)
	}
	if snap.AttendedSessions != 0 || snap.TotalSessionsInCycle != 4 {
		t.Errorf("progress: got %d/%d, want 0/4", snap.AttendedSessions, snap.TotalSessionsInCycle)
	}
}

func TestStudentStatus_NonBillableGroupOwesNothing(t *testing.T) {
	// GIVEN: A group with no fee configured but plenty of attendance
	// THEN: a_jour, zero owed - never an error

	f := newFixture()
	f.store.AddGroup(billing.Group{ID: "g1", Name: "g1"})
	sessions := f.seedSessions("g1", 10)
	f.attend("g1", "s1", sessions)

	snap, err := f.calc.StudentStatus(context.Background(), "s1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != billing.StateAJour || !snap.AmountDue.IsZero() {
		t.Errorf("got (%v, %v), want (a_jour, 0)", snap.State, snap.AmountDue)
	}
}

func TestStudentStatus_MidCycleIsUpToDate(t *testing.T) {
	// GIVEN: 3 of 4 sessions attended, no threshold crossed
	// THEN: a_jour with partial-cycle progress

	f := newFixture()
	f.monthlyFeeGroup("g1", 200, 4)
	sessions := f.seedSessions("g1", 3)
	f.attend("g1", "s1", sessions)

	snap, err := f.calc.StudentStatus(context.Background(), "s1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != billing.StateAJour {
		t.Errorf("state: got %v, want a_jour", snap.State)
	}
	if snap.AttendedSessions != 3 || snap.TotalSessionsInCycle != 4 {
		t.Errorf("progress: got %d/%d, want 3/4", snap.AttendedSessions, snap.TotalSessionsInCycle)
	}
	if snap.CompletedCycles != 0 {
		t.Errorf("completed cycles: got %d, want 0", snap.CompletedCycles)
	}
}

func TestStudentStatus_SessionFeeUnpaidSessionsAccumulate(t *testing.T) {
	// GIVEN: A per-session-fee group (cycle length 1), 3 attended sessions
	//        and no payment records at all
	// WHEN: Computing the status
	// THEN: en_retard, owing fee x 3, progress shows the empty next cycle

	f := newFixture()
	f.sessionFeeGroup("g1", 50)
	sessions := f.seedSessions("g1", 3)
	f.attend("g1", "s1", sessions)

	snap, err := f.calc.StudentStatus(context.Background(), "s1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != billing.StateEnRetard {
		t.Errorf("state: got %v, want en_retard", snap.State)
	}
	if !snap.AmountDue.Equal(money(150)) {
		t.Errorf("amount: got %v, want 150", snap.AmountDue)
	}
	if snap.AttendedSessions != 0 || snap.TotalSessionsInCycle != 1 {
		t.Errorf("progress: got %d/%d, want 0/1", snap.AttendedSessions, snap.TotalSessionsInCycle)
	}
	if snap.CompletedCycles != 3 {
		t.Errorf("completed cycles: got %d, want 3", snap.CompletedCycles)
	}
}

func TestStudentStatus_PendingWithinDueDateIsAwaiting(t *testing.T) {
	// GIVEN: A completed cycle covered by a PENDING payment due in the future
	// THEN: en_attente, owing exactly one cycle, the full awaited cycle shown

	f := newFixture()
	f.monthlyFeeGroup("g1", 200, 4)
	sessions := f.seedSessions("g1", 4)
	f.attend("g1", "s1", sessions)
	f.addPayment("s1", "g1", 0, 200, billing.PaymentPending, frozenNow.AddDate(0, 0, 5))

	snap, err := f.calc.StudentStatus(context.Background(), "s1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != billing.StateEnAttente {
		t.Errorf("state: got %v, want en_attente", snap.State)
	}
	if !snap.AmountDue.Equal(money(200)) {
		t.Errorf("amount: got %v, want 200", snap.AmountDue)
	}
	if snap.AttendedSessions != 4 || snap.TotalSessionsInCycle != 4 {
		t.Errorf("progress: got %d/%d, want 4/4", snap.AttendedSessions, snap.TotalSessionsInCycle)
	}
	if snap.NextDueDate == nil || !snap.NextDueDate.Equal(frozenNow.AddDate(0, 0, 5)) {
		t.Errorf("next due date: got %v", snap.NextDueDate)
	}
}

func TestStudentStatus_PendingOnDueDateStillAwaiting(t *testing.T) {
	// Due "today" has not elapsed - the boundary instant is still en_attente.
	f := newFixture()
	f.monthlyFeeGroup("g1", 200, 4)
	sessions := f.seedSessions("g1", 4)
	f.attend("g1", "s1", sessions)
	f.addPayment("s1", "g1", 0, 200, billing.PaymentPending, frozenNow)

	snap, err := f.calc.StudentStatus(context.Background(), "s1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != billing.StateEnAttente {
		t.Errorf("state: got %v, want en_attente", snap.State)
	}
}

func TestStudentStatus_ElapsedPendingIsOverdue(t *testing.T) {
	// GIVEN: A PENDING payment whose due date has passed
	// THEN: en_retard, even though the record was never swept to OVERDUE

	f := newFixture()
	f.monthlyFeeGroup("g1", 200, 4)
	sessions := f.seedSessions("g1", 4)
	f.attend("g1", "s1", sessions)
	f.addPayment("s1", "g1", 0, 200, billing.PaymentPending, frozenNow.AddDate(0, 0, -1))

	snap, err := f.calc.StudentStatus(context.Background(), "s1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != billing.StateEnRetard {
		t.Errorf("state: got %v, want en_retard", snap.State)
	}
	if !snap.AmountDue.Equal(money(200)) {
		t.Errorf("amount: got %v, want 200", snap.AmountDue)
	}
}

func TestStudentStatus_PaidLatestCycleIsUpToDate(t *testing.T) {
	// GIVEN: 5 attended in a 4-cycle group, cycle 0 PAID
	// THEN: a_jour, showing 1/4 progress into the next cycle

	f := newFixture()
	f.monthlyFeeGroup("g1", 200, 4)
	sessions := f.seedSessions("g1", 5)
	f.attend("g1", "s1", sessions)
	f.addPayment("s1", "g1", 0, 200, billing.PaymentPaid, frozenNow.AddDate(0, 0, -3))

	snap, err := f.calc.StudentStatus(context.Background(), "s1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != billing.StateAJour {
		t.Errorf("state: got %v, want a_jour", snap.State)
	}
	if !snap.AmountDue.IsZero() {
		t.Errorf("amount: got %v, want 0", snap.AmountDue)
	}
	if snap.AttendedSessions != 1 || snap.TotalSessionsInCycle != 4 {
		t.Errorf("progress: got %d/%d, want 1/4", snap.AttendedSessions, snap.TotalSessionsInCycle)
	}
}

func TestStudentStatus_ArrearsCoverAllUnsettledCycles(t *testing.T) {
	// GIVEN: 8 attended (2 completed cycles), cycle 0 PAID, cycle 1 uncovered
	// THEN: en_retard owing one cycle; with nothing paid, owing two

	f := newFixture()
	f.monthlyFeeGroup("g1", 200, 4)
	sessions := f.seedSessions("g1", 8)
	f.attend("g1", "s1", sessions)
	f.addPayment("s1", "g1", 0, 200, billing.PaymentPaid, frozenNow.AddDate(0, 0, -30))

	snap, err := f.calc.StudentStatus(context.Background(), "s1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != billing.StateEnRetard {
		t.Errorf("state: got %v, want en_retard", snap.State)
	}
	if !snap.AmountDue.Equal(money(200)) {
		t.Errorf("amount with one settled cycle: got %v, want 200", snap.AmountDue)
	}

	// Same attendance, no payments at all: both cycles owed.
	f2 := newFixture()
	f2.monthlyFeeGroup("g1", 200, 4)
	sessions2 := f2.seedSessions("g1", 8)
	f2.attend("g1", "s1", sessions2)

	snap2, err := f2.calc.StudentStatus(context.Background(), "s1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap2.AmountDue.Equal(money(400)) {
		t.Errorf("amount with nothing settled: got %v, want 400", snap2.AmountDue)
	}
}

func TestStudentStatus_OnlyPresentCounts(t *testing.T) {
	// GIVEN: 4 completed sessions, but one absence and one excused
	// THEN: 2 attended, no threshold crossed, a_jour

	f := newFixture()
	f.monthlyFeeGroup("g1", 200, 4)
	sessions := f.seedSessions("g1", 4)
	f.store.Enroll("g1", "s1")
	f.store.MarkAttendance(billing.Attendance{SessionID: sessions[0], StudentID: "s1", Status: billing.AttendancePresent})
	f.store.MarkAttendance(billing.Attendance{SessionID: sessions[1], StudentID: "s1", Status: billing.AttendanceAbsent})
	f.store.MarkAttendance(billing.Attendance{SessionID: sessions[2], StudentID: "s1", Status: billing.AttendanceExcused})
	f.store.MarkAttendance(billing.Attendance{SessionID: sessions[3], StudentID: "s1", Status: billing.AttendancePresent})

	snap, err := f.calc.StudentStatus(context.Background(), "s1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != billing.StateAJour {
		t.Errorf("state: got %v, want a_jour", snap.State)
	}
	if snap.AttendedSessions != 2 {
		t.Errorf("attended: got %d, want 2", snap.AttendedSessions)
	}
}

func TestStudentStatus_GroupNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.calc.StudentStatus(context.Background(), "s1", "missing")
	if !errors.Is(err, billing.ErrGroupNotFound) {
		t.Errorf("expected ErrGroupNotFound, got %v", err)
	}
	if billing.IsDataUnavailable(err) {
		t.Error("not-found must not classify as data-unavailable")
	}
}

// =============================================================================
// DATA-UNAVAILABLE CLASSIFICATION
// =============================================================================

// failingStore wraps a working store and fails one read path.
type failingStore struct {
	billing.Store
}

func (failingStore) ListPayments(context.Context, billing.StudentID, billing.GroupID) ([]billing.Payment, error) {
	return nil, errors.New("connection reset")
}

func TestStudentStatus_StoreFailureIsDataUnavailable(t *testing.T) {
	// GIVEN: A store whose payment read fails
	// THEN: The error classifies as data-unavailable, carrying the cause

	f := newFixture()
	f.monthlyFeeGroup("g1", 200, 4)
	sessions := f.seedSessions("g1", 4)
	f.attend("g1", "s1", sessions)

	calc := billing.NewCalculator(failingStore{Store: f.store})
	calc.Now = func() time.Time { return frozenNow }

	_, err := calc.StudentStatus(context.Background(), "s1", "g1")
	if !billing.IsDataUnavailable(err) {
		t.Fatalf("expected data-unavailable, got %v", err)
	}
	var du *billing.DataUnavailableError
	if !errors.As(err, &du) {
		t.Fatalf("expected DataUnavailableError, got %T", err)
	}
	if du.StudentID != "s1" || du.GroupID != "g1" {
		t.Errorf("error context: got (%s, %s)", du.StudentID, du.GroupID)
	}
}

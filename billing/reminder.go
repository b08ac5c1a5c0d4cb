/*
reminder.go - Reminder eligibility classification

PURPOSE:
  Lists the payments a reminder sender should act on: everything PENDING
  or OVERDUE, joined with the student's name and contact info. Delivery
  (email/SMS) is out of scope - this is classification only, and it does
  no de-duplication or rate limiting; that policy belongs to the caller.
*/
package billing

import (
	"context"
	"time"
)

// =============================================================================
// REMINDER ELIGIBILITY
// =============================================================================

// ReminderEntry is one payment a notification sender may act on.
type ReminderEntry struct {
	PaymentID   PaymentID
	StudentID   StudentID
	StudentName string
	ContactInfo string
	GroupID     GroupID
	Amount      Money
	DueDate     time.Time
	State       PaymentState
}

// ReminderList returns every pending or overdue payment with the contact
// details needed to send a reminder, oldest due date first. Students whose
// directory record cannot be loaded are included with empty contact fields
// rather than dropped.
func ReminderList(ctx context.Context, store Store) ([]ReminderEntry, error) {
	payments, err := store.ListPaymentsByStatus(ctx, PaymentPending, PaymentOverdue)
	if err != nil {
		return nil, unavailable("list payments", "", "", err)
	}

	entries := make([]ReminderEntry, 0, len(payments))
	for _, p := range payments {
		entry := ReminderEntry{
			PaymentID: p.ID,
			StudentID: p.StudentID,
			GroupID:   p.GroupID,
			Amount:    p.Amount,
			DueDate:   p.DueDate,
			State:     StateEnAttente,
		}
		if p.Status == PaymentOverdue {
			entry.State = StateEnRetard
		}

		if student, err := store.GetStudent(ctx, p.StudentID); err == nil {
			entry.StudentName = student.Name
			entry.ContactInfo = student.ContactInfo
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

// =============================================================================
// OVERDUE SWEEP
// =============================================================================

// Sweep transitions elapsed pending payments to overdue. Run nightly by
// the scheduler and exposed as an admin endpoint.
type Sweep struct {
	Store Store
}

// MarkOverduePayments flips every PENDING payment whose due date has
// elapsed as of asOf to OVERDUE, returning how many were transitioned.
// Individual update failures are skipped so one bad row does not stop the
// sweep.
func (s *Sweep) MarkOverduePayments(ctx context.Context, asOf time.Time) (int, error) {
	pending, err := s.Store.ListPaymentsByStatus(ctx, PaymentPending)
	if err != nil {
		return 0, unavailable("list payments", "", "", err)
	}

	swept := 0
	for _, p := range pending {
		if !asOf.After(p.DueDate) {
			continue
		}
		if err := s.Store.SetPaymentStatus(ctx, p.ID, PaymentOverdue, nil); err != nil {
			continue
		}
		swept++
	}
	return swept, nil
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the billing domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/coursia/billing-engine/billing"
)

// =============================================================================
// STATUS RESPONSES
// =============================================================================

// StatusDTO is the per-(student, group) payment-status snapshot.
type StatusDTO struct {
	StudentID            string     `json:"student_id"`
	GroupID              string     `json:"group_id"`
	Status               string     `json:"status"`
	AmountDue            string     `json:"amount_due"`
	AttendedSessions     int        `json:"attended_sessions"`
	TotalSessionsInCycle int        `json:"total_sessions_in_cycle"`
	CompletedCycles      int        `json:"completed_cycles"`
	NextDueDate          *time.Time `json:"next_due_date,omitempty"`
}

func toStatusDTO(s billing.PaymentStatusSnapshot) StatusDTO {
	return StatusDTO{
		StudentID:            string(s.StudentID),
		GroupID:              string(s.GroupID),
		Status:               s.State.String(),
		AmountDue:            s.AmountDue.String(),
		AttendedSessions:     s.AttendedSessions,
		TotalSessionsInCycle: s.TotalSessionsInCycle,
		CompletedCycles:      s.CompletedCycles,
		NextDueDate:          s.NextDueDate,
	}
}

// OverallStatusDTO is a student's standing folded across their groups.
type OverallStatusDTO struct {
	StudentID      string      `json:"student_id"`
	Status         string      `json:"status"`
	TotalAmountDue string      `json:"total_amount_due"`
	Groups         []StatusDTO `json:"groups"`
	Unavailable    int         `json:"unavailable,omitempty"`
}

// =============================================================================
// ROLLUP RESPONSES
// =============================================================================

// GroupStatsDTO is a group's revenue/standing rollup.
type GroupStatsDTO struct {
	GroupID        string `json:"group_id"`
	Students       int    `json:"students"`
	AJour          int    `json:"a_jour"`
	EnAttente      int    `json:"en_attente"`
	EnRetard       int    `json:"en_retard"`
	OutstandingDue string `json:"outstanding_due"`
	Collected      string `json:"collected"`
	PendingAmount  string `json:"pending_amount"`
	OverdueAmount  string `json:"overdue_amount"`
	Unavailable    int    `json:"unavailable,omitempty"`
}

func toGroupStatsDTO(s billing.GroupStats) GroupStatsDTO {
	return GroupStatsDTO{
		GroupID:        string(s.GroupID),
		Students:       s.Students,
		AJour:          s.AJour,
		EnAttente:      s.EnAttente,
		EnRetard:       s.EnRetard,
		OutstandingDue: s.OutstandingDue.String(),
		Collected:      s.Collected.String(),
		PendingAmount:  s.PendingAmount.String(),
		OverdueAmount:  s.OverdueAmount.String(),
		Unavailable:    s.Unavailable,
	}
}

// GlobalStatsDTO is the platform-wide rollup.
type GlobalStatsDTO struct {
	Groups         int    `json:"groups"`
	Students       int    `json:"students"`
	AJour          int    `json:"a_jour"`
	EnAttente      int    `json:"en_attente"`
	EnRetard       int    `json:"en_retard"`
	OutstandingDue string `json:"outstanding_due"`
	Collected      string `json:"collected"`
	PendingAmount  string `json:"pending_amount"`
	OverdueAmount  string `json:"overdue_amount"`
	Unavailable    int    `json:"unavailable,omitempty"`
}

// =============================================================================
// GENERATION / SWEEP / REMINDERS
// =============================================================================

// GenerateResponse reports how many pending payments a batch run created.
type GenerateResponse struct {
	GroupID string `json:"group_id"`
	Created int    `json:"created"`
}

// SweepResponse reports how many payments the overdue sweep transitioned.
type SweepResponse struct {
	Swept int       `json:"swept"`
	AsOf  time.Time `json:"as_of"`
}

// ReminderDTO is one reminder-eligible payment.
type ReminderDTO struct {
	PaymentID   string    `json:"payment_id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	ContactInfo string    `json:"contact_info"`
	GroupID     string    `json:"group_id"`
	Amount      string    `json:"amount"`
	DueDate     time.Time `json:"due_date"`
	Status      string    `json:"status"`
}

// MarkPaidRequest is the body for marking a payment as paid.
type MarkPaidRequest struct {
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

// ErrorResponse is the generic failure body.
type ErrorResponse struct {
	Error string `json:"error"`
}

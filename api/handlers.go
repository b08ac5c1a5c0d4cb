/*
handlers.go - HTTP handlers for the billing engine

PURPOSE:
  Thin request/response glue over the billing package. Handlers parse the
  URL/body, call the engine, and translate errors:
  - not found        -> 404
  - data unavailable -> 503 (single-student calls propagate; rollups absorb
                        per-row failures internally and always answer)
  - anything else    -> 500

  No business logic lives here; the decision core is billing/.

SEE ALSO:
  - server.go: Route wiring
  - billing/calculator.go: The decision core
*/
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursia/billing-engine/billing"
)

// Handler carries the engine components the routes dispatch to.
type Handler struct {
	Store      billing.Store
	Calculator *billing.Calculator
	Generator  *billing.Generator
	Aggregator *billing.Aggregator
	Sweep      *billing.Sweep
}

// NewHandler wires the engine components around one store.
func NewHandler(store billing.Store) *Handler {
	return &Handler{
		Store:      store,
		Calculator: billing.NewCalculator(store),
		Generator:  billing.NewGenerator(store),
		Aggregator: billing.NewAggregator(store),
		Sweep:      &billing.Sweep{Store: store},
	}
}

// =============================================================================
// STATUS ENDPOINTS
// =============================================================================

// GetStudentGroupStatus returns the snapshot for one (student, group) pair.
// GET /api/students/{id}/groups/{groupID}/status
func (h *Handler) GetStudentGroupStatus(w http.ResponseWriter, r *http.Request) {
	studentID := billing.StudentID(chi.URLParam(r, "id"))
	groupID := billing.GroupID(chi.URLParam(r, "groupID"))

	snap, err := h.Calculator.StudentStatus(r.Context(), studentID, groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusDTO(snap))
}

// GetStudentOverallStatus returns the worst status and summed amount due
// across all of a student's groups.
// GET /api/students/{id}/status
func (h *Handler) GetStudentOverallStatus(w http.ResponseWriter, r *http.Request) {
	studentID := billing.StudentID(chi.URLParam(r, "id"))

	overall, err := h.Aggregator.StudentOverallStatus(r.Context(), studentID)
	if err != nil {
		writeError(w, err)
		return
	}

	dto := OverallStatusDTO{
		StudentID:      string(overall.StudentID),
		Status:         overall.State.String(),
		TotalAmountDue: overall.TotalAmountDue.String(),
		Groups:         make([]StatusDTO, 0, len(overall.Groups)),
		Unavailable:    overall.Unavailable,
	}
	for _, s := range overall.Groups {
		dto.Groups = append(dto.Groups, toStatusDTO(s))
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ROLLUP ENDPOINTS
// =============================================================================

// GetGroupStats returns a group's revenue/standing rollup.
// GET /api/groups/{id}/stats
func (h *Handler) GetGroupStats(w http.ResponseWriter, r *http.Request) {
	groupID := billing.GroupID(chi.URLParam(r, "id"))

	stats, err := h.Aggregator.GroupRollup(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupStatsDTO(stats))
}

// GetGlobalStats returns the platform-wide rollup.
// GET /api/stats
func (h *Handler) GetGlobalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Aggregator.GlobalRollup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GlobalStatsDTO{
		Groups:         stats.Groups,
		Students:       stats.Students,
		AJour:          stats.AJour,
		EnAttente:      stats.EnAttente,
		EnRetard:       stats.EnRetard,
		OutstandingDue: stats.OutstandingDue.String(),
		Collected:      stats.Collected.String(),
		PendingAmount:  stats.PendingAmount.String(),
		OverdueAmount:  stats.OverdueAmount.String(),
		Unavailable:    stats.Unavailable,
	})
}

// =============================================================================
// GENERATION / PAYMENT TRANSITIONS
// =============================================================================

// GeneratePayments runs the pending-payment generator for every student in
// a group. Idempotent: re-running with no new attendance creates nothing.
// POST /api/groups/{id}/payments/generate
func (h *Handler) GeneratePayments(w http.ResponseWriter, r *http.Request) {
	groupID := billing.GroupID(chi.URLParam(r, "id"))
	actorID := billing.TeacherID(r.Header.Get("X-Actor-ID"))

	created, err := h.Generator.GenerateForGroup(r.Context(), groupID, actorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateResponse{GroupID: string(groupID), Created: created})
}

// MarkPaymentPaid settles a payment. External "mark as paid" action from
// the lifecycle; the engine itself never settles.
// POST /api/payments/{id}/paid
func (h *Handler) MarkPaymentPaid(w http.ResponseWriter, r *http.Request) {
	paymentID := billing.PaymentID(chi.URLParam(r, "id"))

	var req MarkPaidRequest
	if r.Body != nil {
		// Empty body means "paid now".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	paidAt := time.Now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	if err := h.Store.SetPaymentStatus(r.Context(), paymentID, billing.PaymentPaid, &paidAt); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SweepOverdue transitions elapsed pending payments to overdue. Also run
// nightly by the scheduler.
// POST /api/payments/sweep
func (h *Handler) SweepOverdue(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	swept, err := h.Sweep.MarkOverduePayments(r.Context(), asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResponse{Swept: swept, AsOf: asOf})
}

// =============================================================================
// REMINDERS
// =============================================================================

// ListReminders returns every reminder-eligible payment (pending or
// overdue) with student contact details. Classification only; delivery is
// someone else's job.
// GET /api/reminders
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	entries, err := billing.ReminderList(r.Context(), h.Store)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]ReminderDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, ReminderDTO{
			PaymentID:   string(e.PaymentID),
			StudentID:   string(e.StudentID),
			StudentName: e.StudentName,
			ContactInfo: e.ContactInfo,
			GroupID:     string(e.GroupID),
			Amount:      e.Amount.String(),
			DueDate:     e.DueDate,
			Status:      e.State.String(),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case billing.IsNotFound(err):
		status = http.StatusNotFound
	case billing.IsDataUnavailable(err):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

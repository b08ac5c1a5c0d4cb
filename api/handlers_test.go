package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coursia/billing-engine/api"
	"github.com/coursia/billing-engine/billing"
	"github.com/coursia/billing-engine/billing/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory, *api.Handler) {
	t.Helper()
	mem := store.NewMemory()
	handler := api.NewHandler(mem)
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, mem, handler
}

// seedThresholdCrossed seeds a monthly-fee group where the student has just
// attended a full cycle: ready for generation, overdue until then.
func seedThresholdCrossed(mem *store.Memory, groupID billing.GroupID, studentID billing.StudentID) {
	fee := billing.NewMoneyFromInt(200)
	mem.AddGroup(billing.Group{ID: groupID, Name: string(groupID), MonthlyFee: &fee, CycleLength: 4})
	mem.AddStudent(billing.Student{ID: studentID, Name: "Test Student", ContactInfo: "test@example.com"})
	mem.Enroll(groupID, studentID)

	start := time.Now().AddDate(0, 0, -28)
	for i := 0; i < 4; i++ {
		id := billing.SessionID(fmt.Sprintf("%s-ses-%d", groupID, i))
		mem.AddSession(billing.Session{ID: id, GroupID: groupID, Date: start.AddDate(0, 0, 7*i), Status: billing.SessionCompleted})
		mem.MarkAttendance(billing.Attendance{SessionID: id, StudentID: studentID, Status: billing.AttendancePresent})
	}
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: decode: %v", url, err)
		}
	}
}

func postJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("POST %s: decode: %v", url, err)
		}
	}
}

// =============================================================================
// STATUS LIFECYCLE (end to end over the HTTP surface)
// =============================================================================

func TestAPI_StatusLifecycle(t *testing.T) {
	// GIVEN: A student who just completed a billing cycle
	// THEN: en_retard before generation, en_attente after, a_jour once paid

	srv, mem, _ := newTestServer(t)
	seedThresholdCrossed(mem, "g1", "s1")

	statusURL := srv.URL + "/api/students/s1/groups/g1/status"

	// 1. Threshold crossed, no payment yet: overdue for one cycle.
	var status api.StatusDTO
	getJSON(t, statusURL, http.StatusOK, &status)
	if status.Status != "en_retard" {
		t.Errorf("before generation: got %q, want en_retard", status.Status)
	}
	if status.AmountDue != "200.00" {
		t.Errorf("amount: got %q, want 200.00", status.AmountDue)
	}
	if status.CompletedCycles != 1 {
		t.Errorf("completed cycles: got %d, want 1", status.CompletedCycles)
	}

	// 2. Generate: one pending payment materialized.
	var gen api.GenerateResponse
	postJSON(t, srv.URL+"/api/groups/g1/payments/generate", http.StatusOK, &gen)
	if gen.Created != 1 {
		t.Fatalf("generate: created %d, want 1", gen.Created)
	}

	// Idempotent re-run.
	postJSON(t, srv.URL+"/api/groups/g1/payments/generate", http.StatusOK, &gen)
	if gen.Created != 0 {
		t.Errorf("generate re-run: created %d, want 0", gen.Created)
	}

	// 3. Pending within its grace period: awaiting.
	getJSON(t, statusURL, http.StatusOK, &status)
	if status.Status != "en_attente" {
		t.Errorf("after generation: got %q, want en_attente", status.Status)
	}
	if status.NextDueDate == nil {
		t.Error("expected a next due date while awaiting")
	}
	if status.AttendedSessions != 4 || status.TotalSessionsInCycle != 4 {
		t.Errorf("awaited cycle: got %d/%d, want 4/4", status.AttendedSessions, status.TotalSessionsInCycle)
	}

	// 4. Settle it: back to up to date.
	payments, err := mem.ListPayments(context.Background(), "s1", "g1")
	if err != nil || len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d (%v)", len(payments), err)
	}
	postJSON(t, srv.URL+"/api/payments/"+string(payments[0].ID)+"/paid", http.StatusNoContent, nil)

	getJSON(t, statusURL, http.StatusOK, &status)
	if status.Status != "a_jour" {
		t.Errorf("after payment: got %q, want a_jour", status.Status)
	}
	if status.AmountDue != "0.00" {
		t.Errorf("amount after payment: got %q, want 0.00", status.AmountDue)
	}
}

// =============================================================================
// ERROR TRANSLATION
// =============================================================================

func TestAPI_UnknownGroupIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var body api.ErrorResponse
	getJSON(t, srv.URL+"/api/students/s1/groups/missing/status", http.StatusNotFound, &body)
	if body.Error == "" {
		t.Error("expected an error body")
	}
}

func TestAPI_UnknownPaymentIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/payments/missing/paid", http.StatusNotFound, nil)
}

// brokenStore fails every session read.
type brokenStore struct {
	billing.Store
}

func (brokenStore) ListCompletedSessions(context.Context, billing.GroupID) ([]billing.Session, error) {
	return nil, errors.New("db gone")
}

func TestAPI_DataUnavailableIs503(t *testing.T) {
	mem := store.NewMemory()
	fee := billing.NewMoneyFromInt(200)
	mem.AddGroup(billing.Group{ID: "g1", Name: "g1", MonthlyFee: &fee, CycleLength: 4})

	handler := api.NewHandler(brokenStore{Store: mem})
	srv := httptest.NewServer(api.NewRouter(handler))
	defer srv.Close()

	getJSON(t, srv.URL+"/api/students/s1/groups/g1/status", http.StatusServiceUnavailable, nil)
}

// =============================================================================
// ROLLUPS & REMINDERS
// =============================================================================

func TestAPI_GroupAndGlobalStats(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedThresholdCrossed(mem, "g1", "s1")

	var group api.GroupStatsDTO
	getJSON(t, srv.URL+"/api/groups/g1/stats", http.StatusOK, &group)
	if group.Students != 1 || group.EnRetard != 1 {
		t.Errorf("group stats: got %d students / %d en_retard, want 1/1", group.Students, group.EnRetard)
	}
	if group.OutstandingDue != "200.00" {
		t.Errorf("outstanding: got %q, want 200.00", group.OutstandingDue)
	}

	var global api.GlobalStatsDTO
	getJSON(t, srv.URL+"/api/stats", http.StatusOK, &global)
	if global.Groups != 1 || global.EnRetard != 1 {
		t.Errorf("global stats: got %d groups / %d en_retard, want 1/1", global.Groups, global.EnRetard)
	}
}

func TestAPI_OverallStatusFoldsGroups(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedThresholdCrossed(mem, "g1", "s1")

	// Second group, mid-cycle: does not worsen the fold.
	fee := billing.NewMoneyFromInt(150)
	mem.AddGroup(billing.Group{ID: "g2", Name: "g2", MonthlyFee: &fee, CycleLength: 4})
	mem.Enroll("g2", "s1")

	var overall api.OverallStatusDTO
	getJSON(t, srv.URL+"/api/students/s1/status", http.StatusOK, &overall)
	if overall.Status != "en_retard" {
		t.Errorf("overall status: got %q, want en_retard", overall.Status)
	}
	if overall.TotalAmountDue != "200.00" {
		t.Errorf("total due: got %q, want 200.00", overall.TotalAmountDue)
	}
	if len(overall.Groups) != 2 {
		t.Errorf("groups: got %d, want 2", len(overall.Groups))
	}
}

func TestAPI_RemindersAndSweep(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedThresholdCrossed(mem, "g1", "s1")

	// Materialize the pending payment, then check it is reminder-eligible.
	postJSON(t, srv.URL+"/api/groups/g1/payments/generate", http.StatusOK, nil)

	var reminders []api.ReminderDTO
	getJSON(t, srv.URL+"/api/reminders", http.StatusOK, &reminders)
	if len(reminders) != 1 {
		t.Fatalf("reminders: got %d, want 1", len(reminders))
	}
	if reminders[0].StudentName != "Test Student" || reminders[0].ContactInfo == "" {
		t.Errorf("reminder contact: got (%q, %q)", reminders[0].StudentName, reminders[0].ContactInfo)
	}
	if reminders[0].Status != "en_attente" {
		t.Errorf("reminder status: got %q, want en_attente", reminders[0].Status)
	}

	// The payment is within its grace period: nothing to sweep yet.
	var sweep api.SweepResponse
	postJSON(t, srv.URL+"/api/payments/sweep", http.StatusOK, &sweep)
	if sweep.Swept != 0 {
		t.Errorf("sweep: got %d, want 0", sweep.Swept)
	}
}

func TestAPI_SeedRequiresSeedingStore(t *testing.T) {
	// The memory store does not expose the seeding write surface.
	srv, _, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/demo/seed", http.StatusNotImplemented, nil)
}

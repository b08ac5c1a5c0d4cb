/*
seed.go - Demo data seeding (dev only)

PURPOSE:
  Loads a small, recognizable tutoring scenario so the dashboard endpoints
  have something to show: one per-session-fee group, one per-cycle-fee
  group, a handful of students at different points in their cycles.

  Seeding needs write access to groups/sessions/attendance, which the
  engine's own Store contract deliberately does not expose (those tables
  belong to the excluded scheduling subsystem). Stores that support
  seeding implement SeedStore; others get 501.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coursia/billing-engine/billing"
)

// SeedStore is the optional write surface used by the demo seeder.
type SeedStore interface {
	CreateGroup(ctx context.Context, g billing.Group) error
	CreateStudent(ctx context.Context, s billing.Student) error
	Enroll(ctx context.Context, groupID billing.GroupID, studentID billing.StudentID) error
	CreateSession(ctx context.Context, s billing.Session) error
	MarkAttendance(ctx context.Context, a billing.Attendance) error
}

// SeedDemo loads the demo scenario.
// POST /api/demo/seed
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	seeder, ok := h.Store.(SeedStore)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "store does not support seeding"})
		return
	}

	if err := seedDemoData(r.Context(), seeder); err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func seedDemoData(ctx context.Context, s SeedStore) error {
	sessionFee := billing.NewMoneyFromInt(50)
	monthlyFee := billing.NewMoneyFromInt(200)

	groups := []billing.Group{
		{ID: "grp-maths", Name: "Maths Terminale", MonthlyFee: &monthlyFee, CycleLength: 4, TeacherID: "teacher-demo"},
		{ID: "grp-physique", Name: "Physique 1ere", SessionFee: &sessionFee, TeacherID: "teacher-demo"},
	}
	for _, g := range groups {
		if err := s.CreateGroup(ctx, g); err != nil {
			return fmt.Errorf("seed group %s: %w", g.ID, err)
		}
	}

	students := []billing.Student{
		{ID: "stu-amina", Name: "Amina Khelifi", ContactInfo: "amina@example.com"},
		{ID: "stu-bruno", Name: "Bruno Costa", ContactInfo: "+33 6 11 22 33 44"},
		{ID: "stu-chloe", Name: "Chloe Martin", ContactInfo: "chloe@example.com"},
	}
	for _, st := range students {
		if err := s.CreateStudent(ctx, st); err != nil {
			return fmt.Errorf("seed student %s: %w", st.ID, err)
		}
	}

	enrollments := map[billing.GroupID][]billing.StudentID{
		"grp-maths":    {"stu-amina", "stu-bruno"},
		"grp-physique": {"stu-bruno", "stu-chloe"},
	}
	for groupID, members := range enrollments {
		for _, studentID := range members {
			if err := s.Enroll(ctx, groupID, studentID); err != nil {
				return fmt.Errorf("seed enrollment %s/%s: %w", groupID, studentID, err)
			}
		}
	}

	// Six completed weekly sessions per group, everyone present except
	// Amina who missed two - she is mid-cycle, Bruno has crossed
	// thresholds in both groups.
	start := time.Now().AddDate(0, 0, -45)
	for gi, groupID := range []billing.GroupID{"grp-maths", "grp-physique"} {
		for i := 0; i < 6; i++ {
			sess := billing.Session{
				ID:      billing.SessionID(fmt.Sprintf("ses-%d-%d", gi, i)),
				GroupID: groupID,
				Date:    start.AddDate(0, 0, 7*i),
				Status:  billing.SessionCompleted,
			}
			if err := s.CreateSession(ctx, sess); err != nil {
				return fmt.Errorf("seed session %s: %w", sess.ID, err)
			}
			for _, studentID := range enrollments[groupID] {
				status := billing.AttendancePresent
				if studentID == "stu-amina" && i%3 == 0 {
					status = billing.AttendanceAbsent
				}
				att := billing.Attendance{SessionID: sess.ID, StudentID: studentID, Status: status}
				if err := s.MarkAttendance(ctx, att); err != nil {
					return fmt.Errorf("seed attendance %s/%s: %w", sess.ID, studentID, err)
				}
			}
		}
	}

	return nil
}

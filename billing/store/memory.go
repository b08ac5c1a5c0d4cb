// Package store provides billing.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coursia/billing-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	groups      map[billing.GroupID]billing.Group
	students    map[billing.StudentID]billing.Student
	enrollment  map[billing.GroupID][]billing.StudentID
	sessions    map[billing.GroupID][]billing.Session
	attendance  map[billing.SessionID]map[billing.StudentID]billing.AttendanceStatus
	payments    map[pairKey][]*billing.Payment
	paymentByID map[billing.PaymentID]*billing.Payment
}

type pairKey struct {
	StudentID billing.StudentID
	GroupID   billing.GroupID
}

func NewMemory() *Memory {
	return &Memory{
		groups:      make(map[billing.GroupID]billing.Group),
		students:    make(map[billing.StudentID]billing.Student),
		enrollment:  make(map[billing.GroupID][]billing.StudentID),
		sessions:    make(map[billing.GroupID][]billing.Session),
		attendance:  make(map[billing.SessionID]map[billing.StudentID]billing.AttendanceStatus),
		payments:    make(map[pairKey][]*billing.Payment),
		paymentByID: make(map[billing.PaymentID]*billing.Payment),
	}
}

// =============================================================================
// SEEDING - Used by tests, the demo seeder, and dev tooling
// =============================================================================

func (m *Memory) AddGroup(g billing.Group) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = g
}

func (m *Memory) AddStudent(s billing.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = s
}

func (m *Memory) Enroll(groupID billing.GroupID, studentID billing.StudentID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.enrollment[groupID] {
		if existing == studentID {
			return
		}
	}
	m.enrollment[groupID] = append(m.enrollment[groupID], studentID)
}

func (m *Memory) AddSession(s billing.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.GroupID] = append(m.sessions[s.GroupID], s)
}

func (m *Memory) MarkAttendance(a billing.Attendance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attendance[a.SessionID] == nil {
		m.attendance[a.SessionID] = make(map[billing.StudentID]billing.AttendanceStatus)
	}
	m.attendance[a.SessionID][a.StudentID] = a.Status
}

// =============================================================================
// GROUP / STUDENT READS
// =============================================================================

func (m *Memory) GetGroup(_ context.Context, groupID billing.GroupID) (billing.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[groupID]
	if !ok {
		return billing.Group{}, billing.ErrGroupNotFound
	}
	return g, nil
}

func (m *Memory) ListGroups(_ context.Context) ([]billing.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	groups := make([]billing.Group, 0, len(m.groups))
	for _, g := range m.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func (m *Memory) ListGroupsForStudent(_ context.Context, studentID billing.StudentID) ([]billing.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var groups []billing.Group
	for groupID, students := range m.enrollment {
		for _, s := range students {
			if s == studentID {
				groups = append(groups, m.groups[groupID])
				break
			}
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func (m *Memory) ListStudentsInGroup(_ context.Context, groupID billing.GroupID) ([]billing.StudentID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]billing.StudentID, len(m.enrollment[groupID]))
	copy(result, m.enrollment[groupID])
	return result, nil
}

func (m *Memory) GetStudent(_ context.Context, studentID billing.StudentID) (billing.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[studentID]
	if !ok {
		return billing.Student{}, billing.ErrStudentNotFound
	}
	return s, nil
}

// =============================================================================
// SESSION / ATTENDANCE READS
// =============================================================================

func (m *Memory) ListCompletedSessions(_ context.Context, groupID billing.GroupID) ([]billing.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var completed []billing.Session
	for _, s := range m.sessions[groupID] {
		if s.Status == billing.SessionCompleted {
			completed = append(completed, s)
		}
	}
	return billing.OrderSessions(completed), nil
}

func (m *Memory) ListPresentSessions(_ context.Context, studentID billing.StudentID, sessionIDs []billing.SessionID) (map[billing.SessionID]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	present := make(map[billing.SessionID]bool)
	for _, id := range sessionIDs {
		if m.attendance[id][studentID] == billing.AttendancePresent {
			present[id] = true
		}
	}
	return present, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) ListPayments(_ context.Context, studentID billing.StudentID, groupID billing.GroupID) ([]billing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := pairKey{StudentID: studentID, GroupID: groupID}
	result := make([]billing.Payment, 0, len(m.payments[k]))
	for _, p := range m.payments[k] {
		result = append(result, *p)
	}
	return result, nil
}

// InsertPendingPayment enforces the (student, group, cycle) uniqueness
// constraint under the write lock, mirroring the sqlite unique index.
func (m *Memory) InsertPendingPayment(_ context.Context, p billing.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := pairKey{StudentID: p.StudentID, GroupID: p.GroupID}
	for _, existing := range m.payments[k] {
		if existing.CycleIndex >= 0 && existing.CycleIndex == p.CycleIndex {
			return billing.ErrDuplicateCyclePayment
		}
	}

	stored := p
	m.payments[k] = append(m.payments[k], &stored)
	m.paymentByID[p.ID] = &stored
	return nil
}

func (m *Memory) SetPaymentStatus(_ context.Context, id billing.PaymentID, status billing.PaymentStatus, paidAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paymentByID[id]
	if !ok {
		return billing.ErrPaymentNotFound
	}
	p.Status = status
	if status == billing.PaymentPaid {
		p.PaidAt = paidAt
	}
	return nil
}

func (m *Memory) ListPaymentsByStatus(_ context.Context, statuses ...billing.PaymentStatus) ([]billing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[billing.PaymentStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var result []billing.Payment
	for _, payments := range m.payments {
		for _, p := range payments {
			if wanted[p.Status] {
				result = append(result, *p)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].DueDate.Equal(result[j].DueDate) {
			return result[i].DueDate.Before(result[j].DueDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Compile-time check that Memory implements the full store contract.
var _ billing.Store = (*Memory)(nil)

/*
Package sqlite provides a SQLite-backed implementation of the billing
storage interfaces.

PURPOSE:
  Implements billing.Store using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  groups:      Billing configuration per tutoring group
  students:    Directory records (name, contact)
  enrollment:  Student-to-group membership
  sessions:    Group meetings with status
  attendance:  Per-student outcome per session
  payments:    Billing records, one per completed cycle

RACE GUARD:
  idx_unique_cycle_payment enforces at most one payment per
  (student_id, group_id, cycle_index). A losing concurrent insert maps to
  billing.ErrDuplicateCyclePayment, which the generator treats as
  idempotent success. This is the store half of the duplicate-PENDING
  guard; the engine's keyed mutex is the in-process half.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so the dashboard's
  read fan-out doesn't block on writes.

USAGE:
  store, err := sqlite.New("./data/coursia.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/coursia/billing-engine/billing"
)

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		session_fee TEXT,
		monthly_fee TEXT,
		cycle_length INTEGER NOT NULL DEFAULT 4,
		teacher_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact_info TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS enrollment (
		group_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		enrolled_at TEXT NOT NULL,
		PRIMARY KEY (group_id, student_id)
	);

	CREATE INDEX IF NOT EXISTS idx_enrollment_student
		ON enrollment(student_id);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		session_date TEXT NOT NULL,
		status TEXT NOT NULL
	);

	-- Ordered session walks are the calculator's hot path.
	CREATE INDEX IF NOT EXISTS idx_sessions_group_date
		ON sessions(group_id, session_date, id);

	CREATE TABLE IF NOT EXISTS attendance (
		session_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		status TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		PRIMARY KEY (session_id, student_id)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_student
		ON attendance(student_id, session_id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		cycle_index INTEGER NOT NULL DEFAULT -1,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		due_date TEXT NOT NULL,
		paid_at TEXT,
		notes TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_student_group
		ON payments(student_id, group_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_payments_status_due
		ON payments(status, due_date);

	-- CRITICAL: at most one payment per (student, group, cycle). Closes the
	-- generator's read-then-write race across processes; rows with an
	-- unknown cycle index (-1, legacy) are exempt.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_cycle_payment
		ON payments(student_id, group_id, cycle_index)
		WHERE cycle_index >= 0;
	`
	_, err := s.db.Exec(schema)
	return err
}

const timeLayout = time.RFC3339

// =============================================================================
// GROUP / STUDENT READS
// =============================================================================

func (s *Store) GetGroup(ctx context.Context, groupID billing.GroupID) (billing.Group, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, session_fee, monthly_fee, cycle_length, teacher_id
		FROM groups WHERE id = ?`, string(groupID))

	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return billing.Group{}, billing.ErrGroupNotFound
	}
	return g, err
}

func (s *Store) ListGroups(ctx context.Context) ([]billing.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, session_fee, monthly_fee, cycle_length, teacher_id
		FROM groups ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGroups(rows)
}

func (s *Store) ListGroupsForStudent(ctx context.Context, studentID billing.StudentID) ([]billing.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.session_fee, g.monthly_fee, g.cycle_length, g.teacher_id
		FROM groups g
		JOIN enrollment e ON e.group_id = g.id
		WHERE e.student_id = ?
		ORDER BY g.id`, string(studentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGroups(rows)
}

func (s *Store) ListStudentsInGroup(ctx context.Context, groupID billing.GroupID) ([]billing.StudentID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT student_id FROM enrollment WHERE group_id = ? ORDER BY student_id`, string(groupID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []billing.StudentID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		students = append(students, billing.StudentID(id))
	}
	return students, rows.Err()
}

func (s *Store) GetStudent(ctx context.Context, studentID billing.StudentID) (billing.Student, error) {
	var id, name string
	var contact sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, contact_info FROM students WHERE id = ?`, string(studentID)).
		Scan(&id, &name, &contact)
	if err == sql.ErrNoRows {
		return billing.Student{}, billing.ErrStudentNotFound
	}
	if err != nil {
		return billing.Student{}, err
	}
	return billing.Student{
		ID:          billing.StudentID(id),
		Name:        name,
		ContactInfo: contact.String,
	}, nil
}

// =============================================================================
// SESSION / ATTENDANCE READS
// =============================================================================

func (s *Store) ListCompletedSessions(ctx context.Context, groupID billing.GroupID) ([]billing.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, session_date, status
		FROM sessions
		WHERE group_id = ? AND status = ?
		ORDER BY session_date, id`, string(groupID), string(billing.SessionCompleted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []billing.Session
	for rows.Next() {
		var id, gid, date, status string
		if err := rows.Scan(&id, &gid, &date, &status); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, date)
		if err != nil {
			return nil, fmt.Errorf("bad session date %q: %w", date, err)
		}
		sessions = append(sessions, billing.Session{
			ID:      billing.SessionID(id),
			GroupID: billing.GroupID(gid),
			Date:    t,
			Status:  billing.SessionStatus(status),
		})
	}
	return sessions, rows.Err()
}

func (s *Store) ListPresentSessions(ctx context.Context, studentID billing.StudentID, sessionIDs []billing.SessionID) (map[billing.SessionID]bool, error) {
	present := make(map[billing.SessionID]bool)
	if len(sessionIDs) == 0 {
		return present, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sessionIDs)), ",")

	args := make([]any, 0, len(sessionIDs)+2)
	args = append(args, string(studentID), string(billing.AttendancePresent))
	for _, id := range sessionIDs {
		args = append(args, string(id))
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT session_id FROM attendance
		WHERE student_id = ? AND status = ? AND session_id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		present[billing.SessionID(id)] = true
	}
	return present, rows.Err()
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) ListPayments(ctx context.Context, studentID billing.StudentID, groupID billing.GroupID) ([]billing.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, group_id, cycle_index, amount, status, due_date, paid_at, notes, created_by, created_at
		FROM payments
		WHERE student_id = ? AND group_id = ?
		ORDER BY created_at, id`, string(studentID), string(groupID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (s *Store) InsertPendingPayment(ctx context.Context, p billing.Payment) error {
	var paidAt any
	if p.PaidAt != nil {
		paidAt = p.PaidAt.UTC().Format(timeLayout)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, student_id, group_id, cycle_index, amount, status, due_date, paid_at, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.StudentID), string(p.GroupID), p.CycleIndex,
		p.Amount.Value.String(), string(p.Status),
		p.DueDate.UTC().Format(timeLayout), paidAt, p.Notes, string(p.CreatedBy),
		p.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return billing.ErrDuplicateCyclePayment
		}
		return err
	}
	return nil
}

func (s *Store) SetPaymentStatus(ctx context.Context, id billing.PaymentID, status billing.PaymentStatus, paidAt *time.Time) error {
	var paidAtVal any
	if status == billing.PaymentPaid && paidAt != nil {
		paidAtVal = paidAt.UTC().Format(timeLayout)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = ?, paid_at = COALESCE(?, paid_at) WHERE id = ?`,
		string(status), paidAtVal, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) ListPaymentsByStatus(ctx context.Context, statuses ...billing.PaymentStatus) ([]billing.Payment, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")

	args := make([]any, 0, len(statuses))
	for _, st := range statuses {
		args = append(args, string(st))
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, student_id, group_id, cycle_index, amount, status, due_date, paid_at, notes, created_by, created_at
		FROM payments
		WHERE status IN (%s)
		ORDER BY due_date, id`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

// =============================================================================
// WRITE HELPERS - Used by the seeding endpoints and dev tooling
// =============================================================================

func (s *Store) CreateGroup(ctx context.Context, g billing.Group) error {
	var sessionFee, monthlyFee any
	if g.SessionFee != nil {
		sessionFee = g.SessionFee.Value.String()
	}
	if g.MonthlyFee != nil {
		monthlyFee = g.MonthlyFee.Value.String()
	}
	cycleLength := g.CycleLength
	if cycleLength <= 0 {
		cycleLength = billing.DefaultCycleLength
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (id, name, session_fee, monthly_fee, cycle_length, teacher_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(g.ID), g.Name, sessionFee, monthlyFee, cycleLength, string(g.TeacherID),
		time.Now().UTC().Format(timeLayout))
	return err
}

func (s *Store) CreateStudent(ctx context.Context, st billing.Student) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students (id, name, contact_info, created_at) VALUES (?, ?, ?, ?)`,
		string(st.ID), st.Name, st.ContactInfo, time.Now().UTC().Format(timeLayout))
	return err
}

func (s *Store) Enroll(ctx context.Context, groupID billing.GroupID, studentID billing.StudentID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO enrollment (group_id, student_id, enrolled_at) VALUES (?, ?, ?)`,
		string(groupID), string(studentID), time.Now().UTC().Format(timeLayout))
	return err
}

func (s *Store) CreateSession(ctx context.Context, sess billing.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, group_id, session_date, status) VALUES (?, ?, ?, ?)`,
		string(sess.ID), string(sess.GroupID), sess.Date.UTC().Format(timeLayout), string(sess.Status))
	return err
}

func (s *Store) MarkAttendance(ctx context.Context, a billing.Attendance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (session_id, student_id, status, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, student_id) DO UPDATE SET status = excluded.status`,
		string(a.SessionID), string(a.StudentID), string(a.Status),
		time.Now().UTC().Format(timeLayout))
	return err
}

// =============================================================================
// SCANNING HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (billing.Group, error) {
	var id, name string
	var sessionFee, monthlyFee, teacherID sql.NullString
	var cycleLength int

	if err := row.Scan(&id, &name, &sessionFee, &monthlyFee, &cycleLength, &teacherID); err != nil {
		return billing.Group{}, err
	}

	g := billing.Group{
		ID:          billing.GroupID(id),
		Name:        name,
		CycleLength: cycleLength,
		TeacherID:   billing.TeacherID(teacherID.String),
	}
	if sessionFee.Valid {
		m := billing.MustParseMoney(sessionFee.String)
		g.SessionFee = &m
	}
	if monthlyFee.Valid {
		m := billing.MustParseMoney(monthlyFee.String)
		g.MonthlyFee = &m
	}
	return g, nil
}

func scanGroups(rows *sql.Rows) ([]billing.Group, error) {
	var groups []billing.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func scanPayments(rows *sql.Rows) ([]billing.Payment, error) {
	var payments []billing.Payment
	for rows.Next() {
		var id, studentID, groupID, amount, status, dueDate, createdAt string
		var paidAt, notes, createdBy sql.NullString
		var cycleIndex int

		if err := rows.Scan(&id, &studentID, &groupID, &cycleIndex, &amount, &status,
			&dueDate, &paidAt, &notes, &createdBy, &createdAt); err != nil {
			return nil, err
		}

		due, err := time.Parse(timeLayout, dueDate)
		if err != nil {
			return nil, fmt.Errorf("bad due date %q: %w", dueDate, err)
		}
		created, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
		}

		p := billing.Payment{
			ID:         billing.PaymentID(id),
			StudentID:  billing.StudentID(studentID),
			GroupID:    billing.GroupID(groupID),
			CycleIndex: cycleIndex,
			Amount:     billing.MustParseMoney(amount),
			Status:     billing.PaymentStatus(status),
			DueDate:    due,
			Notes:      notes.String,
			CreatedBy:  billing.TeacherID(createdBy.String),
			CreatedAt:  created,
		}
		if paidAt.Valid {
			if t, err := time.Parse(timeLayout, paidAt.String); err == nil {
				p.PaidAt = &t
			}
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// Compile-time check that Store implements the full store contract.
var _ billing.Store = (*Store)(nil)

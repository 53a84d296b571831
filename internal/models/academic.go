package models

import "time"

// Course represents a curso taught during an academic cycle.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Credits     int       `db:"credits" json:"credits"`
	WeeklyHours int       `db:"weekly_hours" json:"weekly_hours"`
	CycleID     string    `db:"cycle_id" json:"cycle_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter restricts course listings.
type CourseFilter struct {
	CycleID   string
	TeacherID string
	Active    *bool
	Page      int
	PageSize  int
}

// EnrollmentStatus is the lifecycle state of a matrícula.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVA"
	EnrollmentStatusWithdrawn EnrollmentStatus = "RETIRADA"
)

// Enrollment ties a student to a course within a cycle.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	CourseID    string           `db:"course_id" json:"course_id"`
	CycleID     string           `db:"cycle_id" json:"cycle_id"`
	EnrolledAt  time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	StudentName string           `db:"student_name" json:"student_name,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

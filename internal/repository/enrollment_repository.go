package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acadperu/sigea-api/internal/models"
)

// EnrollmentRepository handles matrícula persistence.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, cycle_id, enrolled_at, status, created_at, updated_at
        FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudentAndCourse returns the enrollment tying a student to a course.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, cycle_id, enrolled_at, status, created_at, updated_at
        FROM enrollments WHERE student_id = $1 AND course_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByCourse returns active enrollments for a course with student names.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.cycle_id, e.enrolled_at, e.status, e.created_at, e.updated_at,
        u.full_name AS student_name
        FROM enrollments e JOIN users u ON u.id = e.student_id
        WHERE e.course_id = $1 AND e.status = $2
        ORDER BY u.full_name ASC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByStudent returns a student's enrollments.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, cycle_id, enrolled_at, status, created_at, updated_at
        FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at DESC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// Create inserts a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, cycle_id, enrolled_at, status, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :cycle_id, :enrolled_at, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus changes the enrollment lifecycle state.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE enrollments SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

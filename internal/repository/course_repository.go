package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acadperu/sigea-api/internal/models"
)

// CourseRepository handles course persistence.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the filter.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	query := `SELECT id, code, name, credits, weekly_hours, cycle_id, teacher_id, active, created_at, updated_at
        FROM courses WHERE 1=1`
	var args []interface{}
	if filter.CycleID != "" {
		query += fmt.Sprintf(" AND cycle_id = $%d", len(args)+1)
		args = append(args, filter.CycleID)
	}
	if filter.TeacherID != "" {
		query += fmt.Sprintf(" AND teacher_id = $%d", len(args)+1)
		args = append(args, filter.TeacherID)
	}
	if filter.Active != nil {
		query += fmt.Sprintf(" AND active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}
	query += " ORDER BY code ASC"

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindByID returns a course by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, name, credits, weekly_hours, cycle_id, teacher_id, active, created_at, updated_at
        FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, code, name, credits, weekly_hours, cycle_id, teacher_id, active, created_at, updated_at)
        VALUES (:id, :code, :name, :credits, :weekly_hours, :cycle_id, :teacher_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies an existing course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, name = :name, credits = :credits, weekly_hours = :weekly_hours,
        cycle_id = :cycle_id, teacher_id = :teacher_id, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acadperu/sigea-api/internal/models"
)

// GradeRepository handles graded item (nota) persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// FindByID returns a single graded item.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.GradedItem, error) {
	const query = `SELECT id, student_id, course_id, category, score, weight, evaluation_date, notes, created_at, updated_at
        FROM graded_items WHERE id = $1`
	var item models.GradedItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByStudentCourse returns every graded item for a student in a course,
// oldest evaluation first. This is the snapshot the grading engine consumes.
func (r *GradeRepository) ListByStudentCourse(ctx context.Context, studentID, courseID string) ([]models.GradedItem, error) {
	const query = `SELECT id, student_id, course_id, category, score, weight, evaluation_date, notes, created_at, updated_at
        FROM graded_items WHERE student_id = $1 AND course_id = $2
        ORDER BY evaluation_date ASC, created_at ASC`
	var items []models.GradedItem
	if err := r.db.SelectContext(ctx, &items, query, studentID, courseID); err != nil {
		return nil, fmt.Errorf("list graded items: %w", err)
	}
	return items, nil
}

// List returns graded items matching the filter.
func (r *GradeRepository) List(ctx context.Context, filter models.GradedItemFilter) ([]models.GradedItem, error) {
	query := `SELECT id, student_id, course_id, category, score, weight, evaluation_date, notes, created_at, updated_at
        FROM graded_items WHERE 1=1`
	var args []interface{}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		query += fmt.Sprintf(" AND course_id = $%d", len(args)+1)
		args = append(args, filter.CourseID)
	}
	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", len(args)+1)
		args = append(args, filter.Category)
	}
	query += " ORDER BY evaluation_date ASC, created_at ASC"

	var items []models.GradedItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list graded items: %w", err)
	}
	return items, nil
}

// Create inserts a new graded item.
func (r *GradeRepository) Create(ctx context.Context, item *models.GradedItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	const query = `INSERT INTO graded_items (id, student_id, course_id, category, score, weight, evaluation_date, notes, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :category, :score, :weight, :evaluation_date, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create graded item: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a graded item.
func (r *GradeRepository) Update(ctx context.Context, item *models.GradedItem) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE graded_items SET score = :score, evaluation_date = :evaluation_date, notes = :notes, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("update graded item: %w", err)
	}
	return nil
}

// Delete removes a graded item.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM graded_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete graded item: %w", err)
	}
	return nil
}

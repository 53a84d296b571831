package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acadperu/sigea-api/internal/models"
)

// GradeSchemeRepository handles grade scheme persistence. A scheme plus its
// category rows is the stored form of the engine's category configuration.
type GradeSchemeRepository struct {
	db *sqlx.DB
}

// NewGradeSchemeRepository creates a new grade scheme repository.
func NewGradeSchemeRepository(db *sqlx.DB) *GradeSchemeRepository {
	return &GradeSchemeRepository{db: db}
}

// FindByID returns a scheme with its categories loaded.
func (r *GradeSchemeRepository) FindByID(ctx context.Context, id string) (*models.GradeScheme, error) {
	const query = `SELECT id, course_id, cycle_id, finalized, created_at, updated_at
        FROM grade_schemes WHERE id = $1`
	var scheme models.GradeScheme
	if err := r.db.GetContext(ctx, &scheme, query, id); err != nil {
		return nil, err
	}
	if err := r.loadCategories(ctx, &scheme); err != nil {
		return nil, err
	}
	return &scheme, nil
}

// FindByCourseAndCycle returns the scheme for a course in a cycle, or nil when
// none has been registered yet.
func (r *GradeSchemeRepository) FindByCourseAndCycle(ctx context.Context, courseID, cycleID string) (*models.GradeScheme, error) {
	const query = `SELECT id, course_id, cycle_id, finalized, created_at, updated_at
        FROM grade_schemes WHERE course_id = $1 AND cycle_id = $2`
	var scheme models.GradeScheme
	if err := r.db.GetContext(ctx, &scheme, query, courseID, cycleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.loadCategories(ctx, &scheme); err != nil {
		return nil, err
	}
	return &scheme, nil
}

// Create inserts a scheme and its category rows in a single transaction.
func (r *GradeSchemeRepository) Create(ctx context.Context, scheme *models.GradeScheme) error {
	if scheme.ID == "" {
		scheme.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	scheme.CreatedAt = now
	scheme.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const schemeQuery = `INSERT INTO grade_schemes (id, course_id, cycle_id, finalized, created_at, updated_at)
        VALUES (:id, :course_id, :cycle_id, :finalized, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, schemeQuery, scheme); err != nil {
		return fmt.Errorf("create grade scheme: %w", err)
	}

	if err := r.insertCategories(ctx, tx, scheme); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceCategories rewrites the category rows of a draft scheme.
func (r *GradeSchemeRepository) ReplaceCategories(ctx context.Context, scheme *models.GradeScheme) error {
	scheme.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scheme_categories WHERE scheme_id = $1`, scheme.ID); err != nil {
		return fmt.Errorf("clear scheme categories: %w", err)
	}
	if err := r.insertCategories(ctx, tx, scheme); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE grade_schemes SET updated_at = $1 WHERE id = $2`, scheme.UpdatedAt, scheme.ID); err != nil {
		return fmt.Errorf("touch grade scheme: %w", err)
	}
	return tx.Commit()
}

// Finalize locks a scheme against further edits.
func (r *GradeSchemeRepository) Finalize(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE grade_schemes SET finalized = TRUE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("finalize grade scheme: %w", err)
	}
	return nil
}

func (r *GradeSchemeRepository) insertCategories(ctx context.Context, tx *sqlx.Tx, scheme *models.GradeScheme) error {
	const query = `INSERT INTO scheme_categories (id, scheme_id, category, weight, expected_count, created_at)
        VALUES (:id, :scheme_id, :category, :weight, :expected_count, :created_at)`
	for i := range scheme.Categories {
		cat := &scheme.Categories[i]
		if cat.ID == "" {
			cat.ID = uuid.NewString()
		}
		cat.SchemeID = scheme.ID
		cat.CreatedAt = scheme.UpdatedAt
		if _, err := tx.NamedExecContext(ctx, query, cat); err != nil {
			return fmt.Errorf("insert scheme category %q: %w", cat.Category, err)
		}
	}
	return nil
}

func (r *GradeSchemeRepository) loadCategories(ctx context.Context, scheme *models.GradeScheme) error {
	const query = `SELECT id, scheme_id, category, weight, expected_count, created_at
        FROM scheme_categories WHERE scheme_id = $1 ORDER BY category ASC`
	if err := r.db.SelectContext(ctx, &scheme.Categories, query, scheme.ID); err != nil {
		return fmt.Errorf("load scheme categories: %w", err)
	}
	return nil
}

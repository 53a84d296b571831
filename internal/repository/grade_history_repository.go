package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acadperu/sigea-api/internal/models"
)

// GradeHistoryRepository persists the historial de notas audit trail.
type GradeHistoryRepository struct {
	db *sqlx.DB
}

// NewGradeHistoryRepository creates a new grade history repository.
func NewGradeHistoryRepository(db *sqlx.DB) *GradeHistoryRepository {
	return &GradeHistoryRepository{db: db}
}

// Create appends a history row for a graded item mutation.
func (r *GradeHistoryRepository) Create(ctx context.Context, entry *models.GradeHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grade_history (id, item_id, old_score, new_score, reason, changed_by, changed_at)
        VALUES (:id, :item_id, :old_score, :new_score, :reason, :changed_by, :changed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create grade history: %w", err)
	}
	return nil
}

// ListByItem returns the full mutation trail of one graded item, newest first.
func (r *GradeHistoryRepository) ListByItem(ctx context.Context, itemID string) ([]models.GradeHistory, error) {
	const query = `SELECT id, item_id, old_score, new_score, reason, changed_by, changed_at
        FROM grade_history WHERE item_id = $1 ORDER BY changed_at DESC`
	var entries []models.GradeHistory
	if err := r.db.SelectContext(ctx, &entries, query, itemID); err != nil {
		return nil, fmt.Errorf("list grade history: %w", err)
	}
	return entries, nil
}

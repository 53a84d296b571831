package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadperu/sigea-api/internal/models"
)

func newGradeMock(t *testing.T) (*GradeRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewGradeRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestGradeRepositoryListByStudentCourse(t *testing.T) {
	repo, mock := newGradeMock(t)

	evaluated := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "category", "score", "weight", "evaluation_date", "notes", "created_at", "updated_at"}).
		AddRow("item-1", "student-1", "course-1", "SEMANAL", 14.5, 0.1, evaluated, "", evaluated, evaluated).
		AddRow("item-2", "student-1", "course-1", "PARCIAL", 11.0, 0.3, evaluated.AddDate(0, 1, 0), "recuperación", evaluated, evaluated)

	mock.ExpectQuery(`SELECT .+ FROM graded_items WHERE student_id = \$1 AND course_id = \$2`).
		WithArgs("student-1", "course-1").
		WillReturnRows(rows)

	items, err := repo.ListByStudentCourse(context.Background(), "student-1", "course-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "SEMANAL", items[0].Category)
	assert.Equal(t, 11.0, items[1].Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryCreateGeneratesID(t *testing.T) {
	repo, mock := newGradeMock(t)

	mock.ExpectExec(`INSERT INTO graded_items`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	item := &models.GradedItem{
		StudentID:      "student-1",
		CourseID:       "course-1",
		Category:       "PRACTICA",
		Score:          16,
		Weight:         0.3,
		EvaluationDate: time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), item))
	assert.NotEmpty(t, item.ID)
	assert.False(t, item.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryUpdate(t *testing.T) {
	repo, mock := newGradeMock(t)

	mock.ExpectExec(`UPDATE graded_items SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	item := &models.GradedItem{ID: "item-1", Score: 12.25, EvaluationDate: time.Now().UTC()}
	require.NoError(t, repo.Update(context.Background(), item))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryDelete(t *testing.T) {
	repo, mock := newGradeMock(t)

	mock.ExpectExec(`DELETE FROM graded_items WHERE id = \$1`).
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "item-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

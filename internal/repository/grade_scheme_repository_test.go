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

func newSchemeMock(t *testing.T) (*GradeSchemeRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewGradeSchemeRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestGradeSchemeRepositoryFindByCourseAndCycle(t *testing.T) {
	repo, mock := newSchemeMock(t)

	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM grade_schemes WHERE course_id = \$1 AND cycle_id = \$2`).
		WithArgs("course-1", "cycle-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "cycle_id", "finalized", "created_at", "updated_at"}).
			AddRow("scheme-1", "course-1", "cycle-1", false, created, created))
	mock.ExpectQuery(`SELECT .+ FROM scheme_categories WHERE scheme_id = \$1`).
		WithArgs("scheme-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "scheme_id", "category", "weight", "expected_count", "created_at"}).
			AddRow("cat-1", "scheme-1", "PARCIAL", 0.3, 2, created).
			AddRow("cat-2", "scheme-1", "PRACTICA", 0.3, 4, created).
			AddRow("cat-3", "scheme-1", "SEMANAL", 0.1, 32, created))

	scheme, err := repo.FindByCourseAndCycle(context.Background(), "course-1", "cycle-1")
	require.NoError(t, err)
	require.NotNil(t, scheme)
	require.Len(t, scheme.Categories, 3)
	assert.Equal(t, "PARCIAL", scheme.Categories[0].Category)
	assert.Equal(t, 32, scheme.Categories[2].ExpectedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeSchemeRepositoryFindByCourseAndCycleMiss(t *testing.T) {
	repo, mock := newSchemeMock(t)

	mock.ExpectQuery(`SELECT .+ FROM grade_schemes WHERE course_id = \$1 AND cycle_id = \$2`).
		WithArgs("course-1", "cycle-9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "cycle_id", "finalized", "created_at", "updated_at"}))

	scheme, err := repo.FindByCourseAndCycle(context.Background(), "course-1", "cycle-9")
	require.NoError(t, err)
	assert.Nil(t, scheme)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeSchemeRepositoryCreateInsertsCategories(t *testing.T) {
	repo, mock := newSchemeMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO grade_schemes`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO scheme_categories`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO scheme_categories`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	scheme := &models.GradeScheme{
		CourseID: "course-1",
		CycleID:  "cycle-1",
		Categories: []models.SchemeCategory{
			{Category: "PARCIAL", Weight: 0.5, ExpectedCount: 2},
			{Category: "PRACTICA", Weight: 0.5, ExpectedCount: 4},
		},
	}
	require.NoError(t, repo.Create(context.Background(), scheme))
	assert.NotEmpty(t, scheme.ID)
	assert.Equal(t, scheme.ID, scheme.Categories[0].SchemeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeSchemeRepositoryFinalize(t *testing.T) {
	repo, mock := newSchemeMock(t)

	mock.ExpectExec(`UPDATE grade_schemes SET finalized = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Finalize(context.Background(), "scheme-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

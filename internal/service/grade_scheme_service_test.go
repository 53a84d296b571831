package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadperu/sigea-api/internal/models"
	appErrors "github.com/acadperu/sigea-api/pkg/errors"
)

type mockSchemeRepo struct {
	byID      map[string]*models.GradeScheme
	byCourse  map[string]*models.GradeScheme
	created   []*models.GradeScheme
	replaced  []*models.GradeScheme
	finalized []string
}

func newMockSchemeRepo() *mockSchemeRepo {
	return &mockSchemeRepo{
		byID:     make(map[string]*models.GradeScheme),
		byCourse: make(map[string]*models.GradeScheme),
	}
}

func (m *mockSchemeRepo) FindByID(ctx context.Context, id string) (*models.GradeScheme, error) {
	return m.byID[id], nil
}
func (m *mockSchemeRepo) FindByCourseAndCycle(ctx context.Context, courseID, cycleID string) (*models.GradeScheme, error) {
	return m.byCourse[courseID+":"+cycleID], nil
}
func (m *mockSchemeRepo) Create(ctx context.Context, scheme *models.GradeScheme) error {
	scheme.ID = "scheme-1"
	m.created = append(m.created, scheme)
	return nil
}
func (m *mockSchemeRepo) ReplaceCategories(ctx context.Context, scheme *models.GradeScheme) error {
	m.replaced = append(m.replaced, scheme)
	return nil
}
func (m *mockSchemeRepo) Finalize(ctx context.Context, id string) error {
	m.finalized = append(m.finalized, id)
	return nil
}

func validSchemeRequest() GradeSchemeRequest {
	return GradeSchemeRequest{
		CourseID: "course-1",
		CycleID:  "cycle-1",
		Categories: []SchemeCategoryRequest{
			{Category: "PARCIAL", Weight: 0.5, ExpectedCount: 2},
			{Category: "PRACTICA", Weight: 0.5, ExpectedCount: 4},
		},
	}
}

func TestResolveConfigFallsBackToDefault(t *testing.T) {
	svc := NewGradeSchemeService(newMockSchemeRepo(), nil, nil)

	config, err := svc.ResolveConfig(context.Background(), "course-1", "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, 0.10, config["SEMANAL"].Weight)
	assert.Equal(t, 32, config["SEMANAL"].ExpectedCount)
	assert.Equal(t, 2, config["PARCIAL"].ExpectedCount)
}

func TestResolveConfigUsesStoredScheme(t *testing.T) {
	repo := newMockSchemeRepo()
	repo.byCourse["course-1:cycle-1"] = &models.GradeScheme{
		ID: "scheme-1", CourseID: "course-1", CycleID: "cycle-1",
		Categories: []models.SchemeCategory{
			{Category: "PARCIAL", Weight: 0.6, ExpectedCount: 3},
			{Category: "PRACTICA", Weight: 0.4, ExpectedCount: 5},
		},
	}
	svc := NewGradeSchemeService(repo, nil, nil)

	config, err := svc.ResolveConfig(context.Background(), "course-1", "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, 0.6, config["PARCIAL"].Weight)
	assert.NotContains(t, config, "SEMANAL")
}

func TestCreateSchemeRejectsOverweight(t *testing.T) {
	svc := NewGradeSchemeService(newMockSchemeRepo(), nil, nil)

	req := validSchemeRequest()
	req.Categories[0].Weight = 0.8
	req.Categories[1].Weight = 0.5
	_, err := svc.CreateScheme(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)
}

func TestCreateSchemeRejectsDuplicateCategory(t *testing.T) {
	svc := NewGradeSchemeService(newMockSchemeRepo(), nil, nil)

	req := validSchemeRequest()
	req.Categories[1].Category = "PARCIAL"
	_, err := svc.CreateScheme(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateSchemeAcceptsPartialCoverage(t *testing.T) {
	svc := NewGradeSchemeService(newMockSchemeRepo(), nil, nil)

	req := GradeSchemeRequest{
		CourseID: "course-1",
		CycleID:  "cycle-1",
		Categories: []SchemeCategoryRequest{
			{Category: "SEMANAL", Weight: 0.10, ExpectedCount: 32},
			{Category: "PRACTICA", Weight: 0.30, ExpectedCount: 4},
			{Category: "PARCIAL", Weight: 0.30, ExpectedCount: 2},
		},
	}
	scheme, err := svc.CreateScheme(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, scheme.Categories, 3)
}

func TestCreateSchemeConflictsWhenExisting(t *testing.T) {
	repo := newMockSchemeRepo()
	repo.byCourse["course-1:cycle-1"] = &models.GradeScheme{ID: "scheme-1"}
	svc := NewGradeSchemeService(repo, nil, nil)

	_, err := svc.CreateScheme(context.Background(), validSchemeRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUpdateSchemeRejectsFinalized(t *testing.T) {
	repo := newMockSchemeRepo()
	repo.byID["scheme-1"] = &models.GradeScheme{ID: "scheme-1", Finalized: true}
	svc := NewGradeSchemeService(repo, nil, nil)

	_, err := svc.UpdateScheme(context.Background(), "scheme-1", validSchemeRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.replaced)
}

func TestFinalizeSchemeIsIdempotentGuard(t *testing.T) {
	repo := newMockSchemeRepo()
	repo.byID["scheme-1"] = &models.GradeScheme{ID: "scheme-1"}
	svc := NewGradeSchemeService(repo, nil, nil)

	require.NoError(t, svc.FinalizeScheme(context.Background(), "scheme-1"))
	assert.Equal(t, []string{"scheme-1"}, repo.finalized)

	repo.byID["scheme-1"].Finalized = true
	err := svc.FinalizeScheme(context.Background(), "scheme-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
}

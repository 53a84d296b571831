package grading

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadperu/sigea-api/internal/models"
	appErrors "github.com/acadperu/sigea-api/pkg/errors"
)

func legacyConfig() CategoryConfig {
	return CategoryConfig{
		"SEMANAL":  {Weight: 0.1, ExpectedCount: 32},
		"PRACTICA": {Weight: 0.3, ExpectedCount: 4},
		"PARCIAL":  {Weight: 0.3, ExpectedCount: 2},
	}
}

func item(category string, score float64, day int) models.GradedItem {
	return models.GradedItem{
		StudentID:      "stu1",
		CourseID:       "course1",
		Category:       category,
		Score:          score,
		EvaluationDate: time.Date(2025, time.March, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestComputeFinalGradeWeightedExample(t *testing.T) {
	items := []models.GradedItem{
		item("SEMANAL", 16, 1),
		item("SEMANAL", 16, 8),
		item("PRACTICA", 17.5, 15),
		item("PRACTICA", 17.5, 22),
		item("PARCIAL", 15, 30),
		item("PARCIAL", 15, 31),
	}

	result, err := ComputeFinalGrade(items, legacyConfig())
	require.NoError(t, err)

	assert.Equal(t, 16.0, result.Detail.CategoryAverages["SEMANAL"])
	assert.Equal(t, 17.5, result.Detail.CategoryAverages["PRACTICA"])
	assert.Equal(t, 15.0, result.Detail.CategoryAverages["PARCIAL"])
	// 16*0.1 + 17.5*0.3 + 15*0.3
	assert.Equal(t, 11.35, result.FinalAverage)
	assert.Equal(t, StatusApproved, result.Status)
	assert.Equal(t, "stu1", result.StudentID)
	assert.Equal(t, "course1", result.CourseID)
}

func TestComputeFinalGradeNoItems(t *testing.T) {
	result, err := ComputeFinalGrade(nil, legacyConfig())
	require.NoError(t, err)

	assert.Equal(t, StatusNoGrades, result.Status)
	assert.Equal(t, 0.0, result.FinalAverage)
	assert.Empty(t, result.Detail.CategoryAverages)
	assert.Empty(t, result.Detail.ItemsByCategory)
}

func TestComputeFinalGradeApprovalBoundary(t *testing.T) {
	config := CategoryConfig{"PARCIAL": {Weight: 1, ExpectedCount: 2}}

	result, err := ComputeFinalGrade([]models.GradedItem{item("PARCIAL", 10.5, 1)}, config)
	require.NoError(t, err)
	assert.Equal(t, 10.5, result.FinalAverage)
	assert.Equal(t, StatusApproved, result.Status)

	result, err = ComputeFinalGrade([]models.GradedItem{item("PARCIAL", 10.49, 1)}, config)
	require.NoError(t, err)
	assert.Equal(t, StatusNotApproved, result.Status)
}

func TestComputeFinalGradeUngraduatedCategoryContributesZero(t *testing.T) {
	// All midterms missing: their 0.3 weight stays in the sum, no renormalization.
	items := []models.GradedItem{
		item("SEMANAL", 20, 1),
		item("PRACTICA", 20, 2),
	}
	result, err := ComputeFinalGrade(items, legacyConfig())
	require.NoError(t, err)
	assert.Equal(t, 8.0, result.FinalAverage) // 20*0.1 + 20*0.3 + 0*0.3
	assert.Equal(t, StatusNotApproved, result.Status)
	_, present := result.Detail.CategoryAverages["PARCIAL"]
	assert.False(t, present)
}

func TestComputeFinalGradeZeroScoreCategoryIsPresent(t *testing.T) {
	items := []models.GradedItem{item("PARCIAL", 0, 1)}
	result, err := ComputeFinalGrade(items, legacyConfig())
	require.NoError(t, err)

	avg, present := result.Detail.CategoryAverages["PARCIAL"]
	assert.True(t, present)
	assert.Equal(t, 0.0, avg)
	assert.Equal(t, StatusNotApproved, result.Status)
}

func TestComputeFinalGradeOrderInsensitive(t *testing.T) {
	items := []models.GradedItem{
		item("SEMANAL", 13.25, 3),
		item("SEMANAL", 11, 1),
		item("PRACTICA", 9.75, 4),
		item("PARCIAL", 14, 2),
		item("SEMANAL", 18.5, 5),
	}
	baseline, err := ComputeFinalGrade(items, legacyConfig())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.GradedItem, len(items))
		copy(shuffled, items)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		result, err := ComputeFinalGrade(shuffled, legacyConfig())
		require.NoError(t, err)
		assert.Equal(t, baseline.FinalAverage, result.FinalAverage)
		assert.Equal(t, baseline.Status, result.Status)
		assert.Equal(t, baseline.Detail.CategoryAverages, result.Detail.CategoryAverages)
	}
}

func TestComputeFinalGradeDeterministic(t *testing.T) {
	items := []models.GradedItem{
		item("SEMANAL", 12.33, 1),
		item("PRACTICA", 15.67, 2),
	}
	first, err := ComputeFinalGrade(items, legacyConfig())
	require.NoError(t, err)
	second, err := ComputeFinalGrade(items, legacyConfig())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeFinalGradeSortsItemsByDate(t *testing.T) {
	items := []models.GradedItem{
		item("SEMANAL", 10, 20),
		item("SEMANAL", 11, 5),
		item("SEMANAL", 12, 20), // same date as the first: input order preserved
	}
	result, err := ComputeFinalGrade(items, legacyConfig())
	require.NoError(t, err)

	sorted := result.Detail.ItemsByCategory["SEMANAL"]
	require.Len(t, sorted, 3)
	assert.Equal(t, 11.0, sorted[0].Score)
	assert.Equal(t, 10.0, sorted[1].Score)
	assert.Equal(t, 12.0, sorted[2].Score)
}

func TestComputeFinalGradeRoundsHalfUp(t *testing.T) {
	// 12.33 + 12.34 + 12.34 = 37.01, /3 = 12.336..., rounds to 12.34.
	items := []models.GradedItem{
		item("PARCIAL", 12.33, 1),
		item("PARCIAL", 12.34, 2),
		item("PARCIAL", 12.34, 3),
	}
	config := CategoryConfig{"PARCIAL": {Weight: 1, ExpectedCount: 3}}
	result, err := ComputeFinalGrade(items, config)
	require.NoError(t, err)
	assert.Equal(t, 12.34, result.Detail.CategoryAverages["PARCIAL"])

	// 10.125 averages to 10.13, not banker's 10.12.
	items = []models.GradedItem{
		item("PARCIAL", 10.25, 1),
		item("PARCIAL", 10, 2),
	}
	result, err = ComputeFinalGrade(items, config)
	require.NoError(t, err)
	assert.Equal(t, 10.13, result.Detail.CategoryAverages["PARCIAL"])
}

func TestComputeFinalGradeIgnoresItemWeight(t *testing.T) {
	stale := item("PARCIAL", 10, 1)
	stale.Weight = 0.9 // stamped before the scheme changed

	config := CategoryConfig{"PARCIAL": {Weight: 0.5, ExpectedCount: 2}}
	result, err := ComputeFinalGrade([]models.GradedItem{stale}, config)
	require.NoError(t, err)
	assert.Equal(t, 5.0, result.FinalAverage)
}

func TestComputeFinalGradeBoundaryScores(t *testing.T) {
	items := []models.GradedItem{
		item("PARCIAL", 0, 1),
		item("PARCIAL", 20, 2),
	}
	result, err := ComputeFinalGrade(items, legacyConfig())
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.Detail.CategoryAverages["PARCIAL"])
}

func TestComputeFinalGradeRejectsInvalidScore(t *testing.T) {
	_, err := ComputeFinalGrade([]models.GradedItem{item("PARCIAL", 20.5, 1)}, legacyConfig())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidScore.Code, appErr.Code)

	_, err = ComputeFinalGrade([]models.GradedItem{item("PARCIAL", -0.01, 1)}, legacyConfig())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidScore.Code, appErrors.FromError(err).Code)
}

func TestComputeFinalGradeRejectsUnknownCategory(t *testing.T) {
	_, err := ComputeFinalGrade([]models.GradedItem{item("ORAL", 15, 1)}, legacyConfig())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnknownCategory.Code, appErrors.FromError(err).Code)
}

func TestValidateStructureIncomplete(t *testing.T) {
	items := make([]models.GradedItem, 0, 8)
	for day := 1; day <= 8; day++ {
		items = append(items, item("SEMANAL", 14, day))
	}

	report := ValidateStructure(items, legacyConfig())

	semanal := report.Categories["SEMANAL"]
	assert.Equal(t, 32, semanal.Expected)
	assert.Equal(t, 8, semanal.Actual)
	assert.False(t, semanal.Complete)
	assert.False(t, report.OverallComplete)
}

func TestValidateStructureCompleteWithExtraItems(t *testing.T) {
	config := CategoryConfig{
		"PRACTICA": {Weight: 0.5, ExpectedCount: 2},
		"PARCIAL":  {Weight: 0.5, ExpectedCount: 1},
	}
	items := []models.GradedItem{
		item("PRACTICA", 12, 1),
		item("PRACTICA", 13, 2),
		item("PRACTICA", 14, 3), // make-up practice beyond the expected count
		item("PARCIAL", 15, 4),
	}

	report := ValidateStructure(items, config)

	assert.True(t, report.Categories["PRACTICA"].Complete)
	assert.Equal(t, 3, report.Categories["PRACTICA"].Actual)
	assert.True(t, report.OverallComplete)
}

func TestValidateStructureMonotonicInItemCount(t *testing.T) {
	config := CategoryConfig{"PRACTICA": {Weight: 1, ExpectedCount: 3}}

	var items []models.GradedItem
	previousActual := 0
	wasComplete := false
	for day := 1; day <= 5; day++ {
		items = append(items, item("PRACTICA", 11, day))
		report := ValidateStructure(items, config)

		progress := report.Categories["PRACTICA"]
		assert.Equal(t, previousActual+1, progress.Actual)
		if wasComplete {
			assert.True(t, progress.Complete)
		}
		previousActual = progress.Actual
		wasComplete = progress.Complete
	}
	assert.True(t, wasComplete)
}

func TestValidateStructureEmptyItems(t *testing.T) {
	report := ValidateStructure(nil, legacyConfig())
	assert.False(t, report.OverallComplete)
	assert.Equal(t, 0, report.Categories["PARCIAL"].Actual)
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(legacyConfig()))

	err := ValidateConfig(CategoryConfig{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	err = ValidateConfig(CategoryConfig{"PARCIAL": {Weight: 0, ExpectedCount: 2}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)

	err = ValidateConfig(CategoryConfig{"PARCIAL": {Weight: 0.5, ExpectedCount: 0}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	err = ValidateConfig(CategoryConfig{
		"PRACTICA": {Weight: 0.6, ExpectedCount: 4},
		"PARCIAL":  {Weight: 0.6, ExpectedCount: 2},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)

	// Partial coverage is legal: the legacy default sums to 0.7.
	assert.InDelta(t, 0.7, TotalWeight(legacyConfig()), 1e-9)
}

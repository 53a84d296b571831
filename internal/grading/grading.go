// Package grading computes weighted final grades and structure completeness
// for a student's evaluation records in a single course. Both entry points are
// pure functions over an in-memory snapshot: they hold no state, perform no
// I/O and are safe to invoke concurrently.
package grading

import (
	"fmt"
	"math"
	"sort"

	"github.com/acadperu/sigea-api/internal/models"
	appErrors "github.com/acadperu/sigea-api/pkg/errors"
)

// Grade status values as they travel on the wire.
const (
	StatusApproved    = "APROBADO"
	StatusNotApproved = "DESAPROBADO"
	StatusNoGrades    = "SIN_NOTAS"
)

// ApprovalThreshold is the minimum final average that passes a course.
// The boundary value itself is approved.
const ApprovalThreshold = 10.5

const (
	minScore = 0
	maxScore = 20
)

// weightEpsilon absorbs float accumulation error when checking weight sums.
const weightEpsilon = 1e-6

// CategoryRule configures one evaluation category: its fraction of the final
// average and how many graded items the cycle expects for it.
type CategoryRule struct {
	Weight        float64 `json:"peso"`
	ExpectedCount int     `json:"esperadas"`
}

// CategoryConfig maps each recognized category to its rule. Weights should
// sum to at most 1.0; the legacy academy scheme sums to 0.7 on purpose, so
// totals below 1.0 are legal and only the caller decides whether to warn.
type CategoryConfig map[string]CategoryRule

// FinalGradeResult is the transient outcome of one final-grade computation.
type FinalGradeResult struct {
	StudentID    string           `json:"student_id"`
	CourseID     string           `json:"course_id"`
	FinalAverage float64          `json:"promedio_final"`
	Status       string           `json:"estado"`
	Detail       FinalGradeDetail `json:"detalle"`
}

// FinalGradeDetail is the per-category breakdown of a final grade. Categories
// with no items are omitted from both maps.
type FinalGradeDetail struct {
	CategoryAverages map[string]float64             `json:"promedios_categoria"`
	ItemsByCategory  map[string][]models.GradedItem `json:"notas_por_categoria"`
}

// CategoryProgress reports item counts for one category.
type CategoryProgress struct {
	Expected int  `json:"esperadas"`
	Actual   int  `json:"actuales"`
	Complete bool `json:"completas"`
}

// StructureReport summarises whether the expected number of graded items per
// category has been recorded.
type StructureReport struct {
	Categories      map[string]CategoryProgress `json:"categorias"`
	OverallComplete bool                        `json:"estructura_completa"`
}

// ComputeFinalGrade groups items by category, averages each category,
// combines the averages using the config weights and derives the academic
// status. A category with no items contributes 0 to the weighted sum; its
// weight is never redistributed. Item ordering does not affect the result.
//
// The config weight is authoritative: the per-item Weight field is an audit
// copy and is deliberately ignored here so that later scheme changes cannot
// silently drift past computations.
func ComputeFinalGrade(items []models.GradedItem, config CategoryConfig) (*FinalGradeResult, error) {
	result := &FinalGradeResult{
		Status: StatusNoGrades,
		Detail: FinalGradeDetail{
			CategoryAverages: make(map[string]float64),
			ItemsByCategory:  make(map[string][]models.GradedItem),
		},
	}

	for _, item := range items {
		if item.Score < minScore || item.Score > maxScore {
			return nil, appErrors.Clone(appErrors.ErrInvalidScore,
				fmt.Sprintf("score %.2f for item %s outside [%d, %d]", item.Score, item.ID, minScore, maxScore))
		}
		if _, ok := config[item.Category]; !ok {
			return nil, appErrors.Clone(appErrors.ErrUnknownCategory,
				fmt.Sprintf("category %q not part of the course scheme", item.Category))
		}
		result.StudentID = item.StudentID
		result.CourseID = item.CourseID
		result.Detail.ItemsByCategory[item.Category] = append(result.Detail.ItemsByCategory[item.Category], item)
	}

	for category, grouped := range result.Detail.ItemsByCategory {
		sort.SliceStable(grouped, func(i, j int) bool {
			return grouped[i].EvaluationDate.Before(grouped[j].EvaluationDate)
		})

		sum := 0.0
		for _, item := range grouped {
			sum += item.Score
		}
		result.Detail.CategoryAverages[category] = roundHalfUp(sum / float64(len(grouped)))
	}

	final := 0.0
	for category, rule := range config {
		final += result.Detail.CategoryAverages[category] * rule.Weight
	}
	result.FinalAverage = roundHalfUp(final)

	if len(items) > 0 {
		if result.FinalAverage >= ApprovalThreshold {
			result.Status = StatusApproved
		} else {
			result.Status = StatusNotApproved
		}
	}

	return result, nil
}

// ValidateStructure counts items per configured category and reports
// completeness. A category is complete once it reaches the expected count;
// extra items, such as make-up evaluations, never flag it incomplete.
func ValidateStructure(items []models.GradedItem, config CategoryConfig) *StructureReport {
	counts := make(map[string]int, len(config))
	for _, item := range items {
		counts[item.Category]++
	}

	report := &StructureReport{
		Categories:      make(map[string]CategoryProgress, len(config)),
		OverallComplete: true,
	}
	for category, rule := range config {
		progress := CategoryProgress{
			Expected: rule.ExpectedCount,
			Actual:   counts[category],
			Complete: counts[category] >= rule.ExpectedCount,
		}
		report.Categories[category] = progress
		if !progress.Complete {
			report.OverallComplete = false
		}
	}
	return report
}

// ValidateConfig rejects malformed category configurations. It belongs on the
// configuration-load path, not in the per-student computation: weights must be
// positive fractions, expected counts positive, and the total weight must not
// exceed 1.0. Totals below 1.0 are accepted.
func ValidateConfig(config CategoryConfig) error {
	if len(config) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "at least one category required")
	}
	total := 0.0
	for category, rule := range config {
		if rule.Weight <= 0 || rule.Weight > 1 {
			return appErrors.Clone(appErrors.ErrInvalidWeights,
				fmt.Sprintf("category %q weight %.2f outside (0, 1]", category, rule.Weight))
		}
		if rule.ExpectedCount <= 0 {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("category %q expected count must be positive", category))
		}
		total += rule.Weight
	}
	if total > 1+weightEpsilon {
		return appErrors.Clone(appErrors.ErrInvalidWeights,
			fmt.Sprintf("category weights sum to %.2f, must not exceed 1.0", total))
	}
	return nil
}

// TotalWeight returns the configured weight sum, used by callers that warn
// when a scheme covers less than 100% of a course.
func TotalWeight(config CategoryConfig) float64 {
	total := 0.0
	for _, rule := range config {
		total += rule.Weight
	}
	return total
}

// roundHalfUp rounds to two decimals with ties away from zero, matching the
// grading regulation (10.005 becomes 10.01, never 10.00).
func roundHalfUp(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acadperu/sigea-api/internal/grading"
	"github.com/acadperu/sigea-api/internal/models"
	appErrors "github.com/acadperu/sigea-api/pkg/errors"
)

type gradeSchemeRepository interface {
	FindByID(ctx context.Context, id string) (*models.GradeScheme, error)
	FindByCourseAndCycle(ctx context.Context, courseID, cycleID string) (*models.GradeScheme, error)
	Create(ctx context.Context, scheme *models.GradeScheme) error
	ReplaceCategories(ctx context.Context, scheme *models.GradeScheme) error
	Finalize(ctx context.Context, id string) error
}

// GradeSchemeRequest is the payload for creating or replacing a scheme.
type GradeSchemeRequest struct {
	CourseID   string                  `json:"course_id" validate:"required"`
	CycleID    string                  `json:"cycle_id" validate:"required"`
	Categories []SchemeCategoryRequest `json:"categories" validate:"required,min=1,dive"`
}

// SchemeCategoryRequest is one category row of a scheme payload.
type SchemeCategoryRequest struct {
	Category      string  `json:"categoria" validate:"required"`
	Weight        float64 `json:"peso" validate:"required,gt=0,lte=1"`
	ExpectedCount int     `json:"esperadas" validate:"required,gt=0"`
}

// DefaultCategoryConfig is the academy's legacy evaluation scheme, applied
// when a course has no registered scheme for the cycle. The weights sum to
// 0.7 on purpose: the remaining 30% was historically reserved for criteria
// outside the gradebook and never folded back in.
func DefaultCategoryConfig() grading.CategoryConfig {
	return grading.CategoryConfig{
		"SEMANAL":  {Weight: 0.10, ExpectedCount: 32},
		"PRACTICA": {Weight: 0.30, ExpectedCount: 4},
		"PARCIAL":  {Weight: 0.30, ExpectedCount: 2},
	}
}

// GradeSchemeService manages per course+cycle category configurations.
type GradeSchemeService struct {
	repo      gradeSchemeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeSchemeService constructs a GradeSchemeService.
func NewGradeSchemeService(repo gradeSchemeRepository, validate *validator.Validate, logger *zap.Logger) *GradeSchemeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GradeSchemeService{repo: repo, validator: validate, logger: logger}
}

// ResolveConfig returns the category configuration in effect for a course in
// a cycle: the stored scheme if one exists, otherwise the legacy default.
func (s *GradeSchemeService) ResolveConfig(ctx context.Context, courseID, cycleID string) (grading.CategoryConfig, error) {
	scheme, err := s.repo.FindByCourseAndCycle(ctx, courseID, cycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scheme")
	}
	if scheme == nil {
		return DefaultCategoryConfig(), nil
	}
	return configFromScheme(scheme), nil
}

// GetScheme returns the stored scheme for a course+cycle, or NotFound.
func (s *GradeSchemeService) GetScheme(ctx context.Context, courseID, cycleID string) (*models.GradeScheme, error) {
	scheme, err := s.repo.FindByCourseAndCycle(ctx, courseID, cycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scheme")
	}
	if scheme == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no grade scheme registered for course and cycle")
	}
	return scheme, nil
}

// CreateScheme registers a new scheme after validating its category rules.
func (s *GradeSchemeService) CreateScheme(ctx context.Context, req GradeSchemeRequest) (*models.GradeScheme, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheme payload")
	}

	config, err := s.configFromRequest(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByCourseAndCycle(ctx, req.CourseID, req.CycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing scheme")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a scheme already exists for this course and cycle")
	}

	scheme := &models.GradeScheme{
		CourseID:   req.CourseID,
		CycleID:    req.CycleID,
		Categories: categoriesFromRequest(req),
	}
	if err := s.repo.Create(ctx, scheme); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create scheme")
	}

	s.warnPartialCoverage(config, scheme.CourseID, scheme.CycleID)
	return scheme, nil
}

// UpdateScheme replaces the categories of a draft scheme. Finalized schemes
// are immutable because recorded grades reference their weights.
func (s *GradeSchemeService) UpdateScheme(ctx context.Context, schemeID string, req GradeSchemeRequest) (*models.GradeScheme, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheme payload")
	}

	config, err := s.configFromRequest(req)
	if err != nil {
		return nil, err
	}

	scheme, err := s.repo.FindByID(ctx, schemeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheme")
	}
	if scheme.Finalized {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "finalized schemes cannot be modified")
	}

	scheme.Categories = categoriesFromRequest(req)
	if err := s.repo.ReplaceCategories(ctx, scheme); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update scheme")
	}

	s.warnPartialCoverage(config, scheme.CourseID, scheme.CycleID)
	return scheme, nil
}

// FinalizeScheme locks a scheme against further edits.
func (s *GradeSchemeService) FinalizeScheme(ctx context.Context, schemeID string) error {
	scheme, err := s.repo.FindByID(ctx, schemeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheme")
	}
	if scheme.Finalized {
		return appErrors.Clone(appErrors.ErrFinalized, "scheme is already finalized")
	}
	if err := s.repo.Finalize(ctx, schemeID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize scheme")
	}
	return nil
}

func (s *GradeSchemeService) configFromRequest(req GradeSchemeRequest) (grading.CategoryConfig, error) {
	config := make(grading.CategoryConfig, len(req.Categories))
	for _, cat := range req.Categories {
		if _, dup := config[cat.Category]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("duplicate category %q in scheme", cat.Category))
		}
		config[cat.Category] = grading.CategoryRule{Weight: cat.Weight, ExpectedCount: cat.ExpectedCount}
	}
	if err := grading.ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func (s *GradeSchemeService) warnPartialCoverage(config grading.CategoryConfig, courseID, cycleID string) {
	if total := grading.TotalWeight(config); total < 1.0 {
		s.logger.Warn("scheme weights cover less than the full grade",
			zap.Float64("total_weight", total),
			zap.String("course_id", courseID),
			zap.String("cycle_id", cycleID))
	}
}

func categoriesFromRequest(req GradeSchemeRequest) []models.SchemeCategory {
	categories := make([]models.SchemeCategory, 0, len(req.Categories))
	for _, cat := range req.Categories {
		categories = append(categories, models.SchemeCategory{
			Category:      cat.Category,
			Weight:        cat.Weight,
			ExpectedCount: cat.ExpectedCount,
		})
	}
	return categories
}

func configFromScheme(scheme *models.GradeScheme) grading.CategoryConfig {
	config := make(grading.CategoryConfig, len(scheme.Categories))
	for _, cat := range scheme.Categories {
		config[cat.Category] = grading.CategoryRule{Weight: cat.Weight, ExpectedCount: cat.ExpectedCount}
	}
	return config
}

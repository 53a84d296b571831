package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acadperu/sigea-api/internal/grading"
	"github.com/acadperu/sigea-api/internal/metrics"
	"github.com/acadperu/sigea-api/internal/models"
	appErrors "github.com/acadperu/sigea-api/pkg/errors"
)

type gradeRepository interface {
	FindByID(ctx context.Context, id string) (*models.GradedItem, error)
	ListByStudentCourse(ctx context.Context, studentID, courseID string) ([]models.GradedItem, error)
	List(ctx context.Context, filter models.GradedItemFilter) ([]models.GradedItem, error)
	Create(ctx context.Context, item *models.GradedItem) error
	Update(ctx context.Context, item *models.GradedItem) error
	Delete(ctx context.Context, id string) error
}

type gradeHistoryWriter interface {
	Create(ctx context.Context, entry *models.GradeHistory) error
	ListByItem(ctx context.Context, itemID string) ([]models.GradeHistory, error)
}

type gradeCourseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type gradeEnrollmentFinder interface {
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
}

type schemeConfigResolver interface {
	ResolveConfig(ctx context.Context, courseID, cycleID string) (grading.CategoryConfig, error)
}

type finalGradeCache interface {
	GetFinalGrade(ctx context.Context, studentID, courseID string) (*grading.FinalGradeResult, error)
	SetFinalGrade(ctx context.Context, result *grading.FinalGradeResult) error
	InvalidateFinalGrade(ctx context.Context, studentID, courseID string) error
}

type gradeNotifier interface {
	NotifyGradeChange(notification GradeNotification) error
}

type gradeAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// GradeNotification describes a gradebook change for asynchronous delivery.
type GradeNotification struct {
	StudentID  string  `json:"student_id"`
	CourseID   string  `json:"course_id"`
	CourseName string  `json:"course_name"`
	Category   string  `json:"categoria"`
	Score      float64 `json:"nota"`
	Action     string  `json:"action"`
}

// Notification action values.
const (
	GradeActionRecorded = "registrada"
	GradeActionUpdated  = "actualizada"
	GradeActionDeleted  = "eliminada"
)

// CreateGradeRequest is the payload for recording a nota.
type CreateGradeRequest struct {
	StudentID      string    `json:"student_id" validate:"required"`
	CourseID       string    `json:"course_id" validate:"required"`
	Category       string    `json:"categoria" validate:"required"`
	Score          float64   `json:"nota"`
	EvaluationDate time.Time `json:"fecha_evaluacion" validate:"required"`
	Notes          string    `json:"observaciones"`
}

// UpdateGradeRequest rewrites a nota; every correction requires a reason for
// the historial.
type UpdateGradeRequest struct {
	Score          float64    `json:"nota"`
	EvaluationDate *time.Time `json:"fecha_evaluacion,omitempty"`
	Notes          string     `json:"observaciones"`
	Reason         string     `json:"motivo_cambio" validate:"required"`
}

// GradeService records notas, maintains their history and computes final
// grades and structure reports through the grading engine.
type GradeService struct {
	grades      gradeRepository
	history     gradeHistoryWriter
	courses     gradeCourseFinder
	enrollments gradeEnrollmentFinder
	schemes     schemeConfigResolver
	cache       finalGradeCache
	notifier    gradeNotifier
	audit       gradeAuditWriter
	validator   *validator.Validate
	logger      *zap.Logger
}

// GradeServiceDeps bundles the collaborators of a GradeService.
type GradeServiceDeps struct {
	Grades      gradeRepository
	History     gradeHistoryWriter
	Courses     gradeCourseFinder
	Enrollments gradeEnrollmentFinder
	Schemes     schemeConfigResolver
	Cache       finalGradeCache
	Notifier    gradeNotifier
	Audit       gradeAuditWriter
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewGradeService constructs a GradeService. Cache, notifier and audit are
// optional; the service degrades gracefully without them.
func NewGradeService(deps GradeServiceDeps) *GradeService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &GradeService{
		grades:      deps.Grades,
		history:     deps.History,
		courses:     deps.Courses,
		enrollments: deps.Enrollments,
		schemes:     deps.Schemes,
		cache:       deps.Cache,
		notifier:    deps.Notifier,
		audit:       deps.Audit,
		validator:   deps.Validator,
		logger:      deps.Logger,
	}
}

// RecordGrade registers a new nota. The category must belong to the course
// scheme and the score must sit in [0, 20]; both are rejected before any row
// is written. The scheme weight in force is stamped onto the item for audit.
func (s *GradeService) RecordGrade(ctx context.Context, actor *models.JWTClaims, req CreateGradeRequest) (*models.GradedItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Score < 0 || req.Score > 20 {
		return nil, appErrors.Clone(appErrors.ErrInvalidScore, fmt.Sprintf("score %.2f outside [0, 20]", req.Score))
	}

	course, err := s.authorizeCourseWrite(ctx, actor, req.CourseID)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, req.StudentID, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
	}

	config, err := s.schemes.ResolveConfig(ctx, course.ID, course.CycleID)
	if err != nil {
		return nil, err
	}
	rule, ok := config[req.Category]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownCategory,
			fmt.Sprintf("category %q not part of the course scheme", req.Category))
	}

	item := &models.GradedItem{
		StudentID:      req.StudentID,
		CourseID:       req.CourseID,
		Category:       req.Category,
		Score:          req.Score,
		Weight:         rule.Weight,
		EvaluationDate: req.EvaluationDate,
		Notes:          req.Notes,
	}
	if err := s.grades.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record grade")
	}

	if err := s.history.Create(ctx, &models.GradeHistory{
		ItemID:    item.ID,
		NewScore:  item.Score,
		Reason:    "registro inicial",
		ChangedBy: actor.UserID,
	}); err != nil {
		s.logger.Warn("failed to record grade history", zap.Error(err), zap.String("item_id", item.ID))
	}

	s.afterGradeWrite(ctx, actor, item, course, models.AuditActionGradeCreate, GradeActionRecorded, nil)
	metrics.GradeMutations.WithLabelValues("create").Inc()
	return item, nil
}

// UpdateGrade corrects an existing nota, appending the old score to the
// historial with the stated reason.
func (s *GradeService) UpdateGrade(ctx context.Context, actor *models.JWTClaims, itemID string, req UpdateGradeRequest) (*models.GradedItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Score < 0 || req.Score > 20 {
		return nil, appErrors.Clone(appErrors.ErrInvalidScore, fmt.Sprintf("score %.2f outside [0, 20]", req.Score))
	}

	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	course, err := s.authorizeCourseWrite(ctx, actor, item.CourseID)
	if err != nil {
		return nil, err
	}

	oldScore := item.Score
	item.Score = req.Score
	item.Notes = req.Notes
	if req.EvaluationDate != nil {
		item.EvaluationDate = *req.EvaluationDate
	}
	if err := s.grades.Update(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}

	if err := s.history.Create(ctx, &models.GradeHistory{
		ItemID:    item.ID,
		OldScore:  &oldScore,
		NewScore:  item.Score,
		Reason:    req.Reason,
		ChangedBy: actor.UserID,
	}); err != nil {
		s.logger.Warn("failed to record grade history", zap.Error(err), zap.String("item_id", item.ID))
	}

	s.afterGradeWrite(ctx, actor, item, course, models.AuditActionGradeUpdate, GradeActionUpdated, &oldScore)
	metrics.GradeMutations.WithLabelValues("update").Inc()
	return item, nil
}

// DeleteGrade removes a nota, keeping its historial.
func (s *GradeService) DeleteGrade(ctx context.Context, actor *models.JWTClaims, itemID, reason string) error {
	if reason == "" {
		return appErrors.Clone(appErrors.ErrValidation, "a reason is required to delete a grade")
	}

	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return err
	}
	course, err := s.authorizeCourseWrite(ctx, actor, item.CourseID)
	if err != nil {
		return err
	}

	oldScore := item.Score
	if err := s.history.Create(ctx, &models.GradeHistory{
		ItemID:    item.ID,
		OldScore:  &oldScore,
		NewScore:  0,
		Reason:    reason,
		ChangedBy: actor.UserID,
	}); err != nil {
		s.logger.Warn("failed to record grade history", zap.Error(err), zap.String("item_id", item.ID))
	}

	if err := s.grades.Delete(ctx, item.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}

	s.afterGradeWrite(ctx, actor, item, course, models.AuditActionGradeDelete, GradeActionDeleted, &oldScore)
	metrics.GradeMutations.WithLabelValues("delete").Inc()
	return nil
}

// ListGrades returns graded items visible to the actor.
func (s *GradeService) ListGrades(ctx context.Context, actor *models.JWTClaims, filter models.GradedItemFilter) ([]models.GradedItem, error) {
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.UserID
	}
	if actor.Role == models.RoleDocente && filter.CourseID != "" {
		if _, err := s.authorizeCourseWrite(ctx, actor, filter.CourseID); err != nil {
			return nil, err
		}
	}
	items, err := s.grades.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return items, nil
}

// GradeHistory returns the mutation trail of one graded item.
func (s *GradeService) GradeHistory(ctx context.Context, actor *models.JWTClaims, itemID string) ([]models.GradeHistory, error) {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, item.StudentID, item.CourseID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByItem(ctx, itemID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade history")
	}
	return entries, nil
}

// FinalGrade computes the weighted final average for a student in a course.
// Results are cached; any grade write for the pair invalidates the entry.
func (s *GradeService) FinalGrade(ctx context.Context, actor *models.JWTClaims, studentID, courseID string) (*grading.FinalGradeResult, error) {
	if err := s.authorizeRead(ctx, actor, studentID, courseID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, err := s.cache.GetFinalGrade(ctx, studentID, courseID)
		if err != nil {
			s.logger.Warn("final grade cache lookup failed", zap.Error(err))
		} else if cached != nil {
			metrics.FinalGradeCacheHits.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.FinalGradeCacheHits.WithLabelValues("miss").Inc()
	}

	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	config, err := s.schemes.ResolveConfig(ctx, courseID, course.CycleID)
	if err != nil {
		return nil, err
	}
	items, err := s.grades.ListByStudentCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	result, err := grading.ComputeFinalGrade(items, config)
	if err != nil {
		return nil, err
	}
	result.StudentID = studentID
	result.CourseID = courseID
	metrics.FinalGradeComputations.WithLabelValues(result.Status).Inc()

	if s.cache != nil {
		if err := s.cache.SetFinalGrade(ctx, result); err != nil {
			s.logger.Warn("failed to cache final grade", zap.Error(err))
		}
	}
	return result, nil
}

// StructureReport reports per category completeness for a student in a course.
func (s *GradeService) StructureReport(ctx context.Context, actor *models.JWTClaims, studentID, courseID string) (*grading.StructureReport, error) {
	if err := s.authorizeRead(ctx, actor, studentID, courseID); err != nil {
		return nil, err
	}
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	config, err := s.schemes.ResolveConfig(ctx, courseID, course.CycleID)
	if err != nil {
		return nil, err
	}
	items, err := s.grades.ListByStudentCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	return grading.ValidateStructure(items, config), nil
}

func (s *GradeService) loadItem(ctx context.Context, id string) (*models.GradedItem, error) {
	item, err := s.grades.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "graded item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load graded item")
	}
	return item, nil
}

func (s *GradeService) loadCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// authorizeCourseWrite allows admins everywhere and docentes only on courses
// they teach. Students never write grades.
func (s *GradeService) authorizeCourseWrite(ctx context.Context, actor *models.JWTClaims, courseID string) (*models.Course, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleAdmin:
		return course, nil
	case models.RoleDocente:
		if course.TeacherID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "course is not assigned to this teacher")
		}
		return course, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot modify grades")
	}
}

// authorizeRead lets students see only their own records and docentes only
// courses they teach.
func (s *GradeService) authorizeRead(ctx context.Context, actor *models.JWTClaims, studentID, courseID string) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		if actor.UserID != studentID {
			return appErrors.Clone(appErrors.ErrForbidden, "students can only access their own grades")
		}
		return nil
	case models.RoleDocente:
		course, err := s.loadCourse(ctx, courseID)
		if err != nil {
			return err
		}
		if course.TeacherID != actor.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "course is not assigned to this teacher")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
}

func (s *GradeService) afterGradeWrite(ctx context.Context, actor *models.JWTClaims, item *models.GradedItem, course *models.Course, auditAction, notifyAction string, oldScore *float64) {
	if s.cache != nil {
		if err := s.cache.InvalidateFinalGrade(ctx, item.StudentID, item.CourseID); err != nil {
			s.logger.Warn("failed to invalidate final grade cache", zap.Error(err))
		}
	}

	if s.audit != nil {
		newValues, _ := json.Marshal(map[string]interface{}{"nota": item.Score, "categoria": item.Category})
		var oldValues []byte
		if oldScore != nil {
			oldValues, _ = json.Marshal(map[string]interface{}{"nota": *oldScore})
		}
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     auditAction,
			Resource:   "grades",
			ResourceID: &item.ID,
			OldValues:  oldValues,
			NewValues:  newValues,
		}); err != nil {
			s.logger.Warn("failed to record grade audit log", zap.Error(err))
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyGradeChange(GradeNotification{
			StudentID:  item.StudentID,
			CourseID:   item.CourseID,
			CourseName: course.Name,
			Category:   item.Category,
			Score:      item.Score,
			Action:     notifyAction,
		}); err != nil {
			s.logger.Warn("failed to enqueue grade notification", zap.Error(err))
		}
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acadperu/sigea-api/internal/models"
	appErrors "github.com/acadperu/sigea-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

// CourseRequest is the payload for creating or updating a course.
type CourseRequest struct {
	Code        string `json:"code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Credits     int    `json:"credits" validate:"required,gt=0"`
	WeeklyHours int    `json:"weekly_hours" validate:"required,gt=0"`
	CycleID     string `json:"cycle_id" validate:"required"`
	TeacherID   string `json:"teacher_id" validate:"required"`
}

// EnrollRequest registers a student into a course.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	CycleID   string `json:"cycle_id" validate:"required"`
}

// CatalogService manages courses and matrículas.
type CatalogService struct {
	courses     courseRepository
	enrollments enrollmentRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(courses courseRepository, enrollments enrollmentRepository, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CatalogService{courses: courses, enrollments: enrollments, validator: validate, logger: logger}
}

// ListCourses returns courses matching the filter. Docentes are scoped to
// their own courses.
func (s *CatalogService) ListCourses(ctx context.Context, actor *models.JWTClaims, filter models.CourseFilter) ([]models.Course, error) {
	if actor.Role == models.RoleDocente {
		filter.TeacherID = actor.UserID
	}
	courses, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// GetCourse returns one course.
func (s *CatalogService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// CreateCourse registers a new course.
func (s *CatalogService) CreateCourse(ctx context.Context, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{
		Code:        req.Code,
		Name:        req.Name,
		Credits:     req.Credits,
		WeeklyHours: req.WeeklyHours,
		CycleID:     req.CycleID,
		TeacherID:   req.TeacherID,
		Active:      true,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// UpdateCourse modifies an existing course.
func (s *CatalogService) UpdateCourse(ctx context.Context, id string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Code = req.Code
	course.Name = req.Name
	course.Credits = req.Credits
	course.WeeklyHours = req.WeeklyHours
	course.CycleID = req.CycleID
	course.TeacherID = req.TeacherID
	if err := s.courses.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Enroll registers an active matrícula, rejecting duplicates.
func (s *CatalogService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if _, err := s.GetCourse(ctx, req.CourseID); err != nil {
		return nil, err
	}

	existing, err := s.enrollments.FindByStudentAndCourse(ctx, req.StudentID, req.CourseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if existing != nil && existing.Status == models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course")
	}

	enrollment := &models.Enrollment{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		CycleID:   req.CycleID,
		Status:    models.EnrollmentStatusActive,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// Withdraw marks a matrícula as retired. Recorded grades are kept.
func (s *CatalogService) Withdraw(ctx context.Context, enrollmentID string) error {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusWithdrawn {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment is already withdrawn")
	}
	if err := s.enrollments.UpdateStatus(ctx, enrollmentID, models.EnrollmentStatusWithdrawn); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	return nil
}

// CourseEnrollments lists active enrollments for a course.
func (s *CatalogService) CourseEnrollments(ctx context.Context, actor *models.JWTClaims, courseID string) ([]models.Enrollment, error) {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleDocente && course.TeacherID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course is not assigned to this teacher")
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students cannot list course enrollments")
	}
	enrollments, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// StudentEnrollments lists a student's matrículas. Students see only their own.
func (s *CatalogService) StudentEnrollments(ctx context.Context, actor *models.JWTClaims, studentID string) ([]models.Enrollment, error) {
	if actor.Role == models.RoleStudent && actor.UserID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only list their own enrollments")
	}
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadperu/sigea-api/internal/grading"
	"github.com/acadperu/sigea-api/internal/models"
	appErrors "github.com/acadperu/sigea-api/pkg/errors"
)

type mockGradeRepo struct {
	findByIDFn            func(ctx context.Context, id string) (*models.GradedItem, error)
	listByStudentCourseFn func(ctx context.Context, studentID, courseID string) ([]models.GradedItem, error)
	listFn                func(ctx context.Context, filter models.GradedItemFilter) ([]models.GradedItem, error)
	createFn              func(ctx context.Context, item *models.GradedItem) error
	updateFn              func(ctx context.Context, item *models.GradedItem) error
	deleteFn              func(ctx context.Context, id string) error
}

func (m *mockGradeRepo) FindByID(ctx context.Context, id string) (*models.GradedItem, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockGradeRepo) ListByStudentCourse(ctx context.Context, studentID, courseID string) ([]models.GradedItem, error) {
	return m.listByStudentCourseFn(ctx, studentID, courseID)
}
func (m *mockGradeRepo) List(ctx context.Context, filter models.GradedItemFilter) ([]models.GradedItem, error) {
	return m.listFn(ctx, filter)
}
func (m *mockGradeRepo) Create(ctx context.Context, item *models.GradedItem) error {
	return m.createFn(ctx, item)
}
func (m *mockGradeRepo) Update(ctx context.Context, item *models.GradedItem) error {
	return m.updateFn(ctx, item)
}
func (m *mockGradeRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

type mockHistoryRepo struct {
	entries []models.GradeHistory
}

func (m *mockHistoryRepo) Create(ctx context.Context, entry *models.GradeHistory) error {
	m.entries = append(m.entries, *entry)
	return nil
}
func (m *mockHistoryRepo) ListByItem(ctx context.Context, itemID string) ([]models.GradeHistory, error) {
	return m.entries, nil
}

type mockCourseFinder struct {
	course *models.Course
	err    error
}

func (m *mockCourseFinder) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return m.course, m.err
}

type mockEnrollmentFinder struct {
	enrollment *models.Enrollment
	err        error
}

func (m *mockEnrollmentFinder) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	return m.enrollment, m.err
}

type mockSchemeResolver struct {
	config grading.CategoryConfig
	err    error
}

func (m *mockSchemeResolver) ResolveConfig(ctx context.Context, courseID, cycleID string) (grading.CategoryConfig, error) {
	return m.config, m.err
}

type mockResultCache struct {
	stored      map[string]*grading.FinalGradeResult
	invalidated []string
}

func newMockResultCache() *mockResultCache {
	return &mockResultCache{stored: make(map[string]*grading.FinalGradeResult)}
}

func (m *mockResultCache) GetFinalGrade(ctx context.Context, studentID, courseID string) (*grading.FinalGradeResult, error) {
	return m.stored[studentID+":"+courseID], nil
}
func (m *mockResultCache) SetFinalGrade(ctx context.Context, result *grading.FinalGradeResult) error {
	m.stored[result.StudentID+":"+result.CourseID] = result
	return nil
}
func (m *mockResultCache) InvalidateFinalGrade(ctx context.Context, studentID, courseID string) error {
	m.invalidated = append(m.invalidated, studentID+":"+courseID)
	delete(m.stored, studentID+":"+courseID)
	return nil
}

type mockNotifier struct {
	notifications []GradeNotification
}

func (m *mockNotifier) NotifyGradeChange(notification GradeNotification) error {
	m.notifications = append(m.notifications, notification)
	return nil
}

type mockAuditWriter struct {
	logs []models.AuditLog
}

func (m *mockAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

type gradeFixture struct {
	service  *GradeService
	grades   *mockGradeRepo
	history  *mockHistoryRepo
	cache    *mockResultCache
	notifier *mockNotifier
	audit    *mockAuditWriter
}

func newGradeFixture(t *testing.T) *gradeFixture {
	t.Helper()
	grades := &mockGradeRepo{
		createFn: func(ctx context.Context, item *models.GradedItem) error {
			item.ID = "item-1"
			return nil
		},
		updateFn: func(ctx context.Context, item *models.GradedItem) error { return nil },
		deleteFn: func(ctx context.Context, id string) error { return nil },
		listByStudentCourseFn: func(ctx context.Context, studentID, courseID string) ([]models.GradedItem, error) {
			return nil, nil
		},
	}
	history := &mockHistoryRepo{}
	cache := newMockResultCache()
	notifier := &mockNotifier{}
	audit := &mockAuditWriter{}

	svc := NewGradeService(GradeServiceDeps{
		Grades:  grades,
		History: history,
		Courses: &mockCourseFinder{course: &models.Course{
			ID: "course-1", Name: "Matemática I", CycleID: "cycle-1", TeacherID: "teacher-1",
		}},
		Enrollments: &mockEnrollmentFinder{enrollment: &models.Enrollment{
			ID: "enr-1", StudentID: "student-1", CourseID: "course-1", Status: models.EnrollmentStatusActive,
		}},
		Schemes: &mockSchemeResolver{config: grading.CategoryConfig{
			"SEMANAL":  {Weight: 0.10, ExpectedCount: 32},
			"PRACTICA": {Weight: 0.30, ExpectedCount: 4},
			"PARCIAL":  {Weight: 0.30, ExpectedCount: 2},
		}},
		Cache:    cache,
		Notifier: notifier,
		Audit:    audit,
	})
	return &gradeFixture{service: svc, grades: grades, history: history, cache: cache, notifier: notifier, audit: audit}
}

func teacherActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "teacher-1", Role: models.RoleDocente}
}

func TestRecordGradeStampsSchemeWeight(t *testing.T) {
	f := newGradeFixture(t)

	item, err := f.service.RecordGrade(context.Background(), teacherActor(), CreateGradeRequest{
		StudentID:      "student-1",
		CourseID:       "course-1",
		Category:       "PRACTICA",
		Score:          15.5,
		EvaluationDate: time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.30, item.Weight)

	require.Len(t, f.history.entries, 1)
	assert.Nil(t, f.history.entries[0].OldScore)
	assert.Equal(t, 15.5, f.history.entries[0].NewScore)

	require.Len(t, f.notifier.notifications, 1)
	assert.Equal(t, GradeActionRecorded, f.notifier.notifications[0].Action)
	assert.Contains(t, f.cache.invalidated, "student-1:course-1")
}

func TestRecordGradeRejectsUnknownCategory(t *testing.T) {
	f := newGradeFixture(t)
	created := false
	f.grades.createFn = func(ctx context.Context, item *models.GradedItem) error {
		created = true
		return nil
	}

	_, err := f.service.RecordGrade(context.Background(), teacherActor(), CreateGradeRequest{
		StudentID:      "student-1",
		CourseID:       "course-1",
		Category:       "ORAL",
		Score:          12,
		EvaluationDate: time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnknownCategory.Code, appErrors.FromError(err).Code)
	assert.False(t, created)
}

func TestRecordGradeRejectsScoreOutOfRange(t *testing.T) {
	f := newGradeFixture(t)

	_, err := f.service.RecordGrade(context.Background(), teacherActor(), CreateGradeRequest{
		StudentID:      "student-1",
		CourseID:       "course-1",
		Category:       "PARCIAL",
		Score:          20.5,
		EvaluationDate: time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidScore.Code, appErrors.FromError(err).Code)
}

func TestRecordGradeRequiresActiveEnrollment(t *testing.T) {
	f := newGradeFixture(t)
	svc := NewGradeService(GradeServiceDeps{
		Grades:  f.grades,
		History: f.history,
		Courses: &mockCourseFinder{course: &models.Course{ID: "course-1", CycleID: "cycle-1", TeacherID: "teacher-1"}},
		Enrollments: &mockEnrollmentFinder{enrollment: &models.Enrollment{
			StudentID: "student-1", CourseID: "course-1", Status: models.EnrollmentStatusWithdrawn,
		}},
		Schemes: &mockSchemeResolver{config: grading.CategoryConfig{"PARCIAL": {Weight: 1, ExpectedCount: 2}}},
	})

	_, err := svc.RecordGrade(context.Background(), teacherActor(), CreateGradeRequest{
		StudentID:      "student-1",
		CourseID:       "course-1",
		Category:       "PARCIAL",
		Score:          12,
		EvaluationDate: time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRecordGradeForbiddenForOtherTeacher(t *testing.T) {
	f := newGradeFixture(t)

	actor := &models.JWTClaims{UserID: "teacher-9", Role: models.RoleDocente}
	_, err := f.service.RecordGrade(context.Background(), actor, CreateGradeRequest{
		StudentID:      "student-1",
		CourseID:       "course-1",
		Category:       "PARCIAL",
		Score:          12,
		EvaluationDate: time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUpdateGradeKeepsHistoryTrail(t *testing.T) {
	f := newGradeFixture(t)
	f.grades.findByIDFn = func(ctx context.Context, id string) (*models.GradedItem, error) {
		return &models.GradedItem{
			ID: "item-1", StudentID: "student-1", CourseID: "course-1",
			Category: "PARCIAL", Score: 11, Weight: 0.3,
		}, nil
	}

	item, err := f.service.UpdateGrade(context.Background(), teacherActor(), "item-1", UpdateGradeRequest{
		Score:  13.5,
		Reason: "error de digitación",
	})
	require.NoError(t, err)
	assert.Equal(t, 13.5, item.Score)

	require.Len(t, f.history.entries, 1)
	require.NotNil(t, f.history.entries[0].OldScore)
	assert.Equal(t, 11.0, *f.history.entries[0].OldScore)
	assert.Equal(t, "error de digitación", f.history.entries[0].Reason)
	assert.Contains(t, f.cache.invalidated, "student-1:course-1")
}

func TestDeleteGradeRequiresReason(t *testing.T) {
	f := newGradeFixture(t)

	err := f.service.DeleteGrade(context.Background(), teacherActor(), "item-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteGradeNotFound(t *testing.T) {
	f := newGradeFixture(t)
	f.grades.findByIDFn = func(ctx context.Context, id string) (*models.GradedItem, error) {
		return nil, sql.ErrNoRows
	}

	err := f.service.DeleteGrade(context.Background(), teacherActor(), "missing", "duplicado")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFinalGradeComputesAndCaches(t *testing.T) {
	f := newGradeFixture(t)
	f.grades.listByStudentCourseFn = func(ctx context.Context, studentID, courseID string) ([]models.GradedItem, error) {
		return []models.GradedItem{
			{ID: "a", StudentID: "student-1", CourseID: "course-1", Category: "PARCIAL", Score: 15},
			{ID: "b", StudentID: "student-1", CourseID: "course-1", Category: "PRACTICA", Score: 18},
		}, nil
	}

	result, err := f.service.FinalGrade(context.Background(), teacherActor(), "student-1", "course-1")
	require.NoError(t, err)
	// 15*0.3 + 18*0.3 = 9.9, below 10.5
	assert.Equal(t, 9.9, result.FinalAverage)
	assert.Equal(t, grading.StatusNotApproved, result.Status)
	assert.Equal(t, "student-1", result.StudentID)
	assert.NotNil(t, f.cache.stored["student-1:course-1"])
}

func TestFinalGradeServesCachedResult(t *testing.T) {
	f := newGradeFixture(t)
	f.cache.stored["student-1:course-1"] = &grading.FinalGradeResult{
		StudentID: "student-1", CourseID: "course-1", FinalAverage: 14.2, Status: grading.StatusApproved,
	}
	f.grades.listByStudentCourseFn = func(ctx context.Context, studentID, courseID string) ([]models.GradedItem, error) {
		return nil, errors.New("db should not be hit on cache hit")
	}

	result, err := f.service.FinalGrade(context.Background(), teacherActor(), "student-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, 14.2, result.FinalAverage)
}

func TestFinalGradeEmptyGradebook(t *testing.T) {
	f := newGradeFixture(t)

	result, err := f.service.FinalGrade(context.Background(), teacherActor(), "student-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, grading.StatusNoGrades, result.Status)
	assert.Equal(t, 0.0, result.FinalAverage)
	assert.Equal(t, "student-1", result.StudentID)
	assert.Equal(t, "course-1", result.CourseID)
}

func TestFinalGradeStudentScope(t *testing.T) {
	f := newGradeFixture(t)

	self := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}
	_, err := f.service.FinalGrade(context.Background(), self, "student-1", "course-1")
	require.NoError(t, err)

	other := &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent}
	_, err = f.service.FinalGrade(context.Background(), other, "student-1", "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStructureReportCountsPerCategory(t *testing.T) {
	f := newGradeFixture(t)
	f.grades.listByStudentCourseFn = func(ctx context.Context, studentID, courseID string) ([]models.GradedItem, error) {
		items := make([]models.GradedItem, 0, 10)
		for i := 0; i < 8; i++ {
			items = append(items, models.GradedItem{StudentID: "student-1", CourseID: "course-1", Category: "SEMANAL", Score: 12})
		}
		items = append(items,
			models.GradedItem{StudentID: "student-1", CourseID: "course-1", Category: "PARCIAL", Score: 14},
			models.GradedItem{StudentID: "student-1", CourseID: "course-1", Category: "PARCIAL", Score: 13},
		)
		return items, nil
	}

	report, err := f.service.StructureReport(context.Background(), teacherActor(), "student-1", "course-1")
	require.NoError(t, err)
	assert.False(t, report.OverallComplete)
	assert.Equal(t, 8, report.Categories["SEMANAL"].Actual)
	assert.False(t, report.Categories["SEMANAL"].Complete)
	assert.True(t, report.Categories["PARCIAL"].Complete)
	assert.False(t, report.Categories["PRACTICA"].Complete)
}

func TestListGradesScopesStudentToSelf(t *testing.T) {
	f := newGradeFixture(t)
	var seen models.GradedItemFilter
	f.grades.listFn = func(ctx context.Context, filter models.GradedItemFilter) ([]models.GradedItem, error) {
		seen = filter
		return nil, nil
	}

	actor := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}
	_, err := f.service.ListGrades(context.Background(), actor, models.GradedItemFilter{StudentID: "student-9"})
	require.NoError(t, err)
	assert.Equal(t, "student-1", seen.StudentID)
}

package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadperu/sigea-api/internal/grading"
	"github.com/acadperu/sigea-api/internal/models"
	appErrors "github.com/acadperu/sigea-api/pkg/errors"
)

type mockEnrollmentLister struct {
	enrollments []models.Enrollment
}

func (m *mockEnrollmentLister) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	return m.enrollments, nil
}

type mockGradeLister struct {
	byStudent map[string][]models.GradedItem
}

func (m *mockGradeLister) ListByStudentCourse(ctx context.Context, studentID, courseID string) ([]models.GradedItem, error) {
	return m.byStudent[studentID], nil
}

func reportFixture(t *testing.T) *ReportService {
	t.Helper()
	courses := &mockCourseFinder{course: &models.Course{
		ID: "course-1", Code: "MAT101", Name: "Matemática I", CycleID: "cycle-1", TeacherID: "teacher-1",
	}}
	enrollments := &mockEnrollmentLister{enrollments: []models.Enrollment{
		{StudentID: "student-1", CourseID: "course-1", StudentName: "Ana Torres"},
		{StudentID: "student-2", CourseID: "course-1", StudentName: "Luis Mendoza"},
	}}
	grades := &mockGradeLister{byStudent: map[string][]models.GradedItem{
		"student-1": {
			{StudentID: "student-1", CourseID: "course-1", Category: "PARCIAL", Score: 16},
			{StudentID: "student-1", CourseID: "course-1", Category: "PARCIAL", Score: 14},
		},
		"student-2": nil,
	}}
	schemes := &mockSchemeResolver{config: grading.CategoryConfig{
		"PARCIAL": {Weight: 1.0, ExpectedCount: 2},
	}}
	return NewReportService(courses, enrollments, grades, schemes, nil)
}

func TestCourseReportBuildsRowsPerStudent(t *testing.T) {
	svc := reportFixture(t)

	report, err := svc.CourseReport(context.Background(), teacherActor(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, "MAT101", report.CourseCode)
	require.Len(t, report.Rows, 2)

	assert.Equal(t, 15.0, report.Rows[0].FinalAverage)
	assert.Equal(t, grading.StatusApproved, report.Rows[0].Status)
	assert.True(t, report.Rows[0].StructureComplete)

	assert.Equal(t, grading.StatusNoGrades, report.Rows[1].Status)
	assert.False(t, report.Rows[1].StructureComplete)
}

func TestCourseReportForbiddenForStudents(t *testing.T) {
	svc := reportFixture(t)

	actor := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}
	_, err := svc.CourseReport(context.Background(), actor, "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRenderCourseReportCSV(t *testing.T) {
	svc := reportFixture(t)

	rendered, err := svc.RenderCourseReport(context.Background(), teacherActor(), "course-1", ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", rendered.ContentType)
	assert.Equal(t, "notas_MAT101.csv", rendered.FileName)

	content := string(rendered.Content)
	assert.True(t, strings.HasPrefix(content, "Estudiante,Promedio,Estado,Estructura completa"))
	assert.Contains(t, content, "Ana Torres,15.00,APROBADO,Sí")
	assert.Contains(t, content, "Luis Mendoza,0.00,SIN_NOTAS,No")
}

func TestRenderCourseReportPDF(t *testing.T) {
	svc := reportFixture(t)

	rendered, err := svc.RenderCourseReport(context.Background(), teacherActor(), "course-1", ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", rendered.ContentType)
	assert.True(t, strings.HasPrefix(string(rendered.Content), "%PDF"))
}

func TestRenderCourseReportRejectsUnknownFormat(t *testing.T) {
	svc := reportFixture(t)

	_, err := svc.RenderCourseReport(context.Background(), teacherActor(), "course-1", ReportFormat("xml"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

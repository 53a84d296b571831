package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/acadperu/sigea-api/internal/grading"
	"github.com/acadperu/sigea-api/internal/models"
	appErrors "github.com/acadperu/sigea-api/pkg/errors"
	"github.com/acadperu/sigea-api/pkg/export"
)

type reportEnrollmentLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
}

type reportGradeLister interface {
	ListByStudentCourse(ctx context.Context, studentID, courseID string) ([]models.GradedItem, error)
}

// ReportFormat selects the rendering of a course report.
type ReportFormat string

const (
	ReportFormatJSON ReportFormat = "json"
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatPDF  ReportFormat = "pdf"
)

// StudentReportRow is one student's line in a course gradebook report.
type StudentReportRow struct {
	StudentID         string             `json:"student_id"`
	StudentName       string             `json:"student_name"`
	FinalAverage      float64            `json:"promedio_final"`
	Status            string             `json:"estado"`
	CategoryAverages  map[string]float64 `json:"promedios_categoria"`
	StructureComplete bool               `json:"estructura_completa"`
}

// CourseReport is the full gradebook report of one course.
type CourseReport struct {
	CourseID   string             `json:"course_id"`
	CourseCode string             `json:"course_code"`
	CourseName string             `json:"course_name"`
	Rows       []StudentReportRow `json:"rows"`
}

// RenderedReport carries exported bytes plus their content type.
type RenderedReport struct {
	ContentType string
	FileName    string
	Content     []byte
}

// ReportService builds per course gradebook reports and renders them as
// JSON, CSV or PDF.
type ReportService struct {
	courses     gradeCourseFinder
	enrollments reportEnrollmentLister
	grades      reportGradeLister
	schemes     schemeConfigResolver
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(courses gradeCourseFinder, enrollments reportEnrollmentLister, grades reportGradeLister, schemes schemeConfigResolver, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		courses:     courses,
		enrollments: enrollments,
		grades:      grades,
		schemes:     schemes,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// CourseReport computes the gradebook report for every active enrollment in
// a course. Admins see any course; docentes only their own.
func (s *ReportService) CourseReport(ctx context.Context, actor *models.JWTClaims, courseID string) (*CourseReport, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students cannot access course reports")
	}
	if actor.Role == models.RoleDocente && course.TeacherID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course is not assigned to this teacher")
	}

	config, err := s.schemes.ResolveConfig(ctx, course.ID, course.CycleID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	report := &CourseReport{
		CourseID:   course.ID,
		CourseCode: course.Code,
		CourseName: course.Name,
		Rows:       make([]StudentReportRow, 0, len(enrollments)),
	}
	for _, enrollment := range enrollments {
		items, err := s.grades.ListByStudentCourse(ctx, enrollment.StudentID, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
		}
		result, err := grading.ComputeFinalGrade(items, config)
		if err != nil {
			return nil, err
		}
		structure := grading.ValidateStructure(items, config)
		report.Rows = append(report.Rows, StudentReportRow{
			StudentID:         enrollment.StudentID,
			StudentName:       enrollment.StudentName,
			FinalAverage:      result.FinalAverage,
			Status:            result.Status,
			CategoryAverages:  result.Detail.CategoryAverages,
			StructureComplete: structure.OverallComplete,
		})
	}
	return report, nil
}

// RenderCourseReport builds the course report and renders it in the
// requested format.
func (s *ReportService) RenderCourseReport(ctx context.Context, actor *models.JWTClaims, courseID string, format ReportFormat) (*RenderedReport, error) {
	report, err := s.CourseReport(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	switch format {
	case ReportFormatCSV:
		content, err := s.csv.Render(s.dataset(report))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &RenderedReport{
			ContentType: "text/csv",
			FileName:    fmt.Sprintf("notas_%s.csv", report.CourseCode),
			Content:     content,
		}, nil
	case ReportFormatPDF:
		content, err := s.pdf.Render(s.dataset(report), fmt.Sprintf("Reporte de notas %s", report.CourseName))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &RenderedReport{
			ContentType: "application/pdf",
			FileName:    fmt.Sprintf("notas_%s.pdf", report.CourseCode),
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}
}

func (s *ReportService) dataset(report *CourseReport) export.Dataset {
	headers := []string{"Estudiante", "Promedio", "Estado", "Estructura completa"}
	rows := make([]map[string]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, map[string]string{
			"Estudiante":          row.StudentName,
			"Promedio":            strconv.FormatFloat(row.FinalAverage, 'f', 2, 64),
			"Estado":              row.Status,
			"Estructura completa": boolToSpanish(row.StructureComplete),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func boolToSpanish(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}

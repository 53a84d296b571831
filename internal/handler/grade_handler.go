package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acadperu/sigea-api/internal/models"
	"github.com/acadperu/sigea-api/internal/service"
	appErrors "github.com/acadperu/sigea-api/pkg/errors"
	"github.com/acadperu/sigea-api/pkg/response"
)

// GradeHandler exposes graded item endpoints plus the computed final grade
// and structure reports.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// List godoc
// @Summary List graded items
// @Tags Grades
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param course_id query string false "Filter by course"
// @Param categoria query string false "Filter by category"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	filter := models.GradedItemFilter{
		StudentID: c.Query("student_id"),
		CourseID:  c.Query("course_id"),
		Category:  c.Query("categoria"),
	}
	items, err := h.grades.ListGrades(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Record a nota
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.CreateGradeRequest true "Grade payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Create(c *gin.Context) {
	var req service.CreateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.grades.RecordGrade(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Correct a nota
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Graded item ID"
// @Param payload body service.UpdateGradeRequest true "Correction payload"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [put]
func (h *GradeHandler) Update(c *gin.Context) {
	var req service.UpdateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.grades.UpdateGrade(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a nota
// @Tags Grades
// @Produce json
// @Param id path string true "Graded item ID"
// @Param motivo query string true "Reason for deletion"
// @Security BearerAuth
// @Success 204
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	if err := h.grades.DeleteGrade(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.Query("motivo")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary List the historial of a nota
// @Tags Grades
// @Produce json
// @Param id path string true "Graded item ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /grades/{id}/history [get]
func (h *GradeHandler) History(c *gin.Context) {
	entries, err := h.grades.GradeHistory(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// FinalGrade godoc
// @Summary Compute the final weighted average for a student in a course
// @Tags Grades
// @Produce json
// @Param studentId path string true "Student ID"
// @Param courseId path string true "Course ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/courses/{courseId}/final-grade [get]
func (h *GradeHandler) FinalGrade(c *gin.Context) {
	result, err := h.grades.FinalGrade(c.Request.Context(), claimsFromContext(c), c.Param("studentId"), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Structure godoc
// @Summary Report gradebook completeness per category
// @Tags Grades
// @Produce json
// @Param studentId path string true "Student ID"
// @Param courseId path string true "Course ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/courses/{courseId}/structure [get]
func (h *GradeHandler) Structure(c *gin.Context) {
	report, err := h.grades.StructureReport(c.Request.Context(), claimsFromContext(c), c.Param("studentId"), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

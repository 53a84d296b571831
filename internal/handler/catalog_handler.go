package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/acadperu/sigea-api/internal/models"
	"github.com/acadperu/sigea-api/internal/service"
	appErrors "github.com/acadperu/sigea-api/pkg/errors"
	"github.com/acadperu/sigea-api/pkg/response"
)

// CatalogHandler exposes course and enrollment endpoints.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListCourses godoc
// @Summary List courses
// @Tags Catalog
// @Produce json
// @Param cycle_id query string false "Filter by cycle"
// @Param active query bool false "Filter by active flag"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	filter := models.CourseFilter{CycleID: c.Query("cycle_id")}
	if raw := c.Query("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &active
		}
	}
	courses, err := h.catalog.ListCourses(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// GetCourse godoc
// @Summary Get a course
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CatalogHandler) GetCourse(c *gin.Context) {
	course, err := h.catalog.GetCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// CreateCourse godoc
// @Summary Register a course
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.CourseRequest true "Course payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CatalogHandler) CreateCourse(c *gin.Context) {
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.catalog.CreateCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// UpdateCourse godoc
// @Summary Update a course
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CourseRequest true "Course payload"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CatalogHandler) UpdateCourse(c *gin.Context) {
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.catalog.UpdateCourse(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Enroll godoc
// @Summary Enroll a student into a course
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *CatalogHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.catalog.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Withdraw godoc
// @Summary Withdraw an enrollment
// @Tags Catalog
// @Produce json
// @Param id path string true "Enrollment ID"
// @Security BearerAuth
// @Success 204
// @Router /enrollments/{id} [delete]
func (h *CatalogHandler) Withdraw(c *gin.Context) {
	if err := h.catalog.Withdraw(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CourseEnrollments godoc
// @Summary List active enrollments of a course
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollments [get]
func (h *CatalogHandler) CourseEnrollments(c *gin.Context) {
	enrollments, err := h.catalog.CourseEnrollments(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// StudentEnrollments godoc
// @Summary List a student's enrollments
// @Tags Catalog
// @Produce json
// @Param studentId path string true "Student ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/enrollments [get]
func (h *CatalogHandler) StudentEnrollments(c *gin.Context) {
	enrollments, err := h.catalog.StudentEnrollments(c.Request.Context(), claimsFromContext(c), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

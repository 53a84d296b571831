package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acadperu/sigea-api/internal/service"
	appErrors "github.com/acadperu/sigea-api/pkg/errors"
	"github.com/acadperu/sigea-api/pkg/response"
)

// GradeSchemeHandler exposes grade scheme management endpoints.
type GradeSchemeHandler struct {
	schemes *service.GradeSchemeService
}

// NewGradeSchemeHandler constructs handler.
func NewGradeSchemeHandler(schemes *service.GradeSchemeService) *GradeSchemeHandler {
	return &GradeSchemeHandler{schemes: schemes}
}

// Get godoc
// @Summary Get the grade scheme of a course in a cycle
// @Tags Schemes
// @Produce json
// @Param courseId query string true "Course ID"
// @Param cycleId query string true "Cycle ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /grade-schemes [get]
func (h *GradeSchemeHandler) Get(c *gin.Context) {
	scheme, err := h.schemes.GetScheme(c.Request.Context(), c.Query("courseId"), c.Query("cycleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scheme, nil)
}

// Create godoc
// @Summary Register a grade scheme
// @Tags Schemes
// @Accept json
// @Produce json
// @Param payload body service.GradeSchemeRequest true "Scheme payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /grade-schemes [post]
func (h *GradeSchemeHandler) Create(c *gin.Context) {
	var req service.GradeSchemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	scheme, err := h.schemes.CreateScheme(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, scheme)
}

// Update godoc
// @Summary Replace the categories of a draft scheme
// @Tags Schemes
// @Accept json
// @Produce json
// @Param id path string true "Scheme ID"
// @Param payload body service.GradeSchemeRequest true "Scheme payload"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /grade-schemes/{id} [put]
func (h *GradeSchemeHandler) Update(c *gin.Context) {
	var req service.GradeSchemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	scheme, err := h.schemes.UpdateScheme(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scheme, nil)
}

// Finalize godoc
// @Summary Finalize a scheme, locking its weights
// @Tags Schemes
// @Produce json
// @Param id path string true "Scheme ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /grade-schemes/{id}/finalize [post]
func (h *GradeSchemeHandler) Finalize(c *gin.Context) {
	if err := h.schemes.FinalizeScheme(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "finalized"}, nil)
}

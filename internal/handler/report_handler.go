package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acadperu/sigea-api/internal/service"
	"github.com/acadperu/sigea-api/pkg/response"
)

// ReportHandler exposes course gradebook report endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// CourseReport godoc
// @Summary Course gradebook report
// @Tags Reports
// @Produce json
// @Param id path string true "Course ID"
// @Param format query string false "Output format: json, csv or pdf" default(json)
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reports/courses/{id} [get]
func (h *ReportHandler) CourseReport(c *gin.Context) {
	format := service.ReportFormat(c.DefaultQuery("format", string(service.ReportFormatJSON)))
	claims := claimsFromContext(c)

	if format == service.ReportFormatJSON {
		report, err := h.reports.CourseReport(c.Request.Context(), claims, c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, report, nil)
		return
	}

	rendered, err := h.reports.RenderCourseReport(c.Request.Context(), claims, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+rendered.FileName+`"`)
	c.Data(http.StatusOK, rendered.ContentType, rendered.Content)
}

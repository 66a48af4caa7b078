package handler

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/terminusgps/timekeeper-api/internal/dto"
	"github.com/terminusgps/timekeeper-api/internal/models"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
	"github.com/terminusgps/timekeeper-api/pkg/response"
)

type reportService interface {
	Create(ctx context.Context, createdBy string) (*dto.ReportResponse, error)
	Get(ctx context.Context, id string) (*dto.ReportResponse, error)
	List(ctx context.Context, filter models.ReportFilter) ([]dto.ReportResponse, *models.Pagination, error)
	AssignLogs(ctx context.Context, reportID string, req dto.AssignLogsRequest, actorID string) error
	GenerateShifts(ctx context.Context, reportID, actorID string) (*dto.GenerateShiftsResponse, error)
	ListShifts(ctx context.Context, reportID string) ([]dto.ShiftResponse, error)
	GeneratePDF(ctx context.Context, reportID, actorID string) (*dto.GeneratePDFResponse, error)
	ExportShiftsCSV(ctx context.Context, reportID string) ([]byte, error)
	ResolveDownload(ctx context.Context, token string) (string, *os.File, error)
}

// ReportHandler exposes the report lifecycle endpoints.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Create godoc
// @Summary Create a report
// @Tags Reports
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	report, err := h.reports.Create(c.Request.Context(), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// List godoc
// @Summary List reports
// @Tags Reports
// @Produce json
// @Param createdBy query string false "Filter by creator"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	filter := models.ReportFilter{
		CreatedBy: c.Query("createdBy"),
		Page:      intQuery(c, "page", 1),
		PageSize:  intQuery(c, "pageSize", 20),
	}
	reports, pagination, err := h.reports.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, pagination)
}

// Get godoc
// @Summary Get one report
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// AssignLogs godoc
// @Summary Assign log entries to a report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.AssignLogsRequest true "Log entry IDs"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reports/{id}/logs [post]
func (h *ReportHandler) AssignLogs(c *gin.Context) {
	var req dto.AssignLogsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.reports.AssignLogs(c.Request.Context(), c.Param("id"), req, actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GenerateShifts godoc
// @Summary Generate shifts from assigned logs
// @Description Runs once per report; requires at least one assigned log
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /reports/{id}/shifts [post]
func (h *ReportHandler) GenerateShifts(c *gin.Context) {
	result, err := h.reports.GenerateShifts(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListShifts godoc
// @Summary List a report's shifts
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/shifts [get]
func (h *ReportHandler) ListShifts(c *gin.Context) {
	shifts, err := h.reports.ListShifts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shifts, nil)
}

// GeneratePDF godoc
// @Summary Render the report PDF
// @Description Requires generated shifts; returns a signed download link
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /reports/{id}/pdf [post]
func (h *ReportHandler) GeneratePDF(c *gin.Context) {
	result, err := h.reports.GeneratePDF(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportCSV godoc
// @Summary Export a report's shifts as CSV
// @Tags Reports
// @Produce text/csv
// @Param id path string true "Report ID"
// @Success 200 {string} string "CSV payload"
// @Failure 412 {object} response.Envelope
// @Router /reports/{id}/shifts.csv [get]
func (h *ReportHandler) ExportCSV(c *gin.Context) {
	payload, err := h.reports.ExportShiftsCSV(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="shifts.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}

// Download godoc
// @Summary Download a rendered report PDF
// @Description Token-authenticated; no JWT required
// @Tags Reports
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {string} string "PDF payload"
// @Failure 401 {object} response.Envelope
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	reportID, file, err := h.reports.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="report-`+reportID+`.pdf"`)
	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}

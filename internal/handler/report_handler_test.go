package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/terminusgps/timekeeper-api/internal/dto"
	"github.com/terminusgps/timekeeper-api/internal/middleware"
	"github.com/terminusgps/timekeeper-api/internal/models"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
)

type reportServiceMock struct {
	createResp    *dto.ReportResponse
	generateResp  *dto.GenerateShiftsResponse
	generateErr   error
	pdfResp       *dto.GeneratePDFResponse
	pdfErr        error
	assignErr     error
	downloadID    string
	downloadFile  *os.File
	downloadErr   error
	assignedLogs  []string
	generateCalls int
}

func (m *reportServiceMock) Create(ctx context.Context, createdBy string) (*dto.ReportResponse, error) {
	return m.createResp, nil
}

func (m *reportServiceMock) Get(ctx context.Context, id string) (*dto.ReportResponse, error) {
	return m.createResp, nil
}

func (m *reportServiceMock) List(ctx context.Context, filter models.ReportFilter) ([]dto.ReportResponse, *models.Pagination, error) {
	return nil, &models.Pagination{}, nil
}

func (m *reportServiceMock) AssignLogs(ctx context.Context, reportID string, req dto.AssignLogsRequest, actorID string) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	m.assignedLogs = append(m.assignedLogs, req.LogIDs...)
	return nil
}

func (m *reportServiceMock) GenerateShifts(ctx context.Context, reportID, actorID string) (*dto.GenerateShiftsResponse, error) {
	m.generateCalls++
	return m.generateResp, m.generateErr
}

func (m *reportServiceMock) ListShifts(ctx context.Context, reportID string) ([]dto.ShiftResponse, error) {
	return nil, nil
}

func (m *reportServiceMock) GeneratePDF(ctx context.Context, reportID, actorID string) (*dto.GeneratePDFResponse, error) {
	return m.pdfResp, m.pdfErr
}

func (m *reportServiceMock) ExportShiftsCSV(ctx context.Context, reportID string) ([]byte, error) {
	return []byte("Start,End,Duration\n"), nil
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (string, *os.File, error) {
	return m.downloadID, m.downloadFile, m.downloadErr
}

func withClaims(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "op-1", Role: models.RoleOperator})
}

func TestReportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{createResp: &dto.ReportResponse{ID: "report-1", CreatedBy: "op-1"}}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/reports", nil)
	withClaims(c)
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestReportHandlerGenerateShifts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		generateResp: &dto.GenerateShiftsResponse{ReportID: "report-1", ShiftCount: 3, GeneratedAt: time.Now().UTC()},
	}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/reports/report-1/shifts", nil)
	c.Params = gin.Params{{Key: "id", Value: "report-1"}}
	withClaims(c)

	h.GenerateShifts(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.GenerateShiftsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 3, envelope.Data.ShiftCount)
}

func TestReportHandlerGenerateShiftsConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{generateErr: appErrors.ErrShiftsGenerated}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/reports/report-1/shifts", nil)
	c.Params = gin.Params{{Key: "id", Value: "report-1"}}
	withClaims(c)

	h.GenerateShifts(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestReportHandlerAssignLogsRequiresPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodPost, "/reports/report-1/logs", []byte("{"))
	c.Params = gin.Params{{Key: "id", Value: "report-1"}}
	withClaims(c)

	h.AssignLogs(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerAssignLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{}
	h := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(dto.AssignLogsRequest{LogIDs: []string{"log-1", "log-2"}})
	c, w := newGinContext(http.MethodPost, "/reports/report-1/logs", payload)
	c.Params = gin.Params{{Key: "id", Value: "report-1"}}
	withClaims(c)

	h.AssignLogs(c)
	// The 204 is buffered until gin flushes the response; force it since the
	// handler runs outside an engine here.
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, []string{"log-1", "log-2"}, mockSvc.assignedLogs)
}

func TestReportHandlerGeneratePDFPreconditionFailed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{pdfErr: appErrors.Clone(appErrors.ErrPreconditionFailed, "shifts have not been generated for report")}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/reports/report-1/pdf", nil)
	c.Params = gin.Params{{Key: "id", Value: "report-1"}}
	withClaims(c)

	h.GeneratePDF(c)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestReportHandlerDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reports/download", nil)
	h.Download(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerDownloadStreamsPDF(t *testing.T) {
	gin.SetMode(gin.TestMode)

	file, err := os.CreateTemp(t.TempDir(), "report-*.pdf")
	require.NoError(t, err)
	_, err = file.WriteString("%PDF-1.4 test")
	require.NoError(t, err)
	_, err = file.Seek(0, 0)
	require.NoError(t, err)

	mockSvc := &reportServiceMock{downloadID: "report-1", downloadFile: file}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/download?token=abc", nil)
	h.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "report-report-1.pdf")
	require.Contains(t, w.Body.String(), "%PDF")
}

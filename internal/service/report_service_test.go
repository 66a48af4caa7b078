package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/terminusgps/timekeeper-api/internal/dto"
	"github.com/terminusgps/timekeeper-api/internal/models"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
	"github.com/terminusgps/timekeeper-api/pkg/export"
	"github.com/terminusgps/timekeeper-api/pkg/storage"
)

type mockReportRepo struct {
	reports   map[string]*models.Report
	assigned  map[string][]string
	pdfPath   string
	auditLogs []*models.AuditLog
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{reports: make(map[string]*models.Report), assigned: make(map[string][]string)}
}

func (m *mockReportRepo) Create(ctx context.Context, report *models.Report) error {
	report.ID = "report-1"
	report.CreatedAt = time.Now().UTC()
	m.reports[report.ID] = report
	return nil
}

func (m *mockReportRepo) GetByID(ctx context.Context, id string) (*models.Report, error) {
	report, ok := m.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *report
	return &copied, nil
}

func (m *mockReportRepo) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	rows := make([]models.Report, 0, len(m.reports))
	for _, report := range m.reports {
		rows = append(rows, *report)
	}
	return rows, len(rows), nil
}

func (m *mockReportRepo) AssignLogs(ctx context.Context, reportID string, logIDs []string) error {
	m.assigned[reportID] = append(m.assigned[reportID], logIDs...)
	return nil
}

func (m *mockReportRepo) SetPDF(ctx context.Context, reportID, pdfPath string, generatedAt time.Time) error {
	m.pdfPath = pdfPath
	if report, ok := m.reports[reportID]; ok {
		report.PDFPath = &pdfPath
		report.PDFGeneratedAt = &generatedAt
	}
	return nil
}

func (m *mockReportRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockReportLogs struct {
	entries    []models.LogEntry
	countCalls int
}

func (m *mockReportLogs) ListByReport(ctx context.Context, reportID string) ([]models.LogEntry, error) {
	return m.entries, nil
}

func (m *mockReportLogs) CountByReport(ctx context.Context, reportID string) (int, error) {
	return len(m.entries), nil
}

func (m *mockReportLogs) CountByReports(ctx context.Context, reportIDs []string) (map[string]int, error) {
	m.countCalls++
	counts := make(map[string]int, len(reportIDs))
	for _, id := range reportIDs {
		counts[id] = len(m.entries)
	}
	return counts, nil
}

type mockShiftRepo struct {
	inserted    []models.Shift
	generatedAt time.Time
	records     []models.ShiftRecord
	insertErr   error
	insertCalls int
}

func (m *mockShiftRepo) InsertGenerated(ctx context.Context, reportID string, shifts []models.Shift, generatedAt time.Time) error {
	m.insertCalls++
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = shifts
	m.generatedAt = generatedAt
	return nil
}

func (m *mockShiftRepo) ListByReport(ctx context.Context, reportID string) ([]models.ShiftRecord, error) {
	return m.records, nil
}

type reportFixture struct {
	svc     *ReportService
	reports *mockReportRepo
	logs    *mockReportLogs
	shifts  *mockShiftRepo
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	reports := newMockReportRepo()
	logs := &mockReportLogs{}
	shifts := &mockShiftRepo{}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewReportService(reports, logs, shifts, reports, nil, 0, nil, export.NewPDFExporter(), export.NewCSVExporter(), store, signer, validator.New(), zap.NewNop())
	return &reportFixture{svc: svc, reports: reports, logs: logs, shifts: shifts}
}

func punchEntries(employeeID string, start time.Time) []models.LogEntry {
	return []models.LogEntry{
		{ID: "log-1", EmployeeID: employeeID, Action: models.ActionPunchIn, RecordedAt: start, Seq: 1},
		{ID: "log-2", EmployeeID: employeeID, Action: models.ActionPunchOut, RecordedAt: start.Add(8 * time.Hour), Seq: 2},
	}
}

func TestReportServiceGenerateShifts(t *testing.T) {
	f := newReportFixture(t)
	report, err := f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	f.logs.entries = punchEntries("emp-1", start)

	resp, err := f.svc.GenerateShifts(context.Background(), report.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ShiftCount)
	require.Len(t, f.shifts.inserted, 1)
	assert.Equal(t, start, f.shifts.inserted[0].StartAt)
	assert.Equal(t, 8*time.Hour, f.shifts.inserted[0].Duration)
}

func TestReportServiceGenerateShiftsRequiresLogs(t *testing.T) {
	f := newReportFixture(t)
	report, err := f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = f.svc.GenerateShifts(context.Background(), report.ID, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Zero(t, f.shifts.insertCalls)
}

func TestReportServiceGenerateShiftsRunsOnce(t *testing.T) {
	f := newReportFixture(t)
	report, err := f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)
	f.logs.entries = punchEntries("emp-1", time.Now().UTC().Add(-24*time.Hour))

	generatedAt := time.Now().UTC()
	f.reports.reports[report.ID].ShiftsGeneratedAt = &generatedAt

	_, err = f.svc.GenerateShifts(context.Background(), report.ID, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrShiftsGenerated.Code, appErrors.FromError(err).Code)
	assert.Zero(t, f.shifts.insertCalls)
}

func TestReportServiceGenerateShiftsUnpairedLogsYieldZero(t *testing.T) {
	f := newReportFixture(t)
	report, err := f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)

	// A lone punch-out has nothing to pair with; generation still runs and
	// stamps the report.
	f.logs.entries = []models.LogEntry{
		{ID: "log-1", EmployeeID: "emp-1", Action: models.ActionPunchOut, RecordedAt: time.Now().UTC(), Seq: 1},
	}

	resp, err := f.svc.GenerateShifts(context.Background(), report.ID, "user-1")
	require.NoError(t, err)
	assert.Zero(t, resp.ShiftCount)
	assert.Equal(t, 1, f.shifts.insertCalls)
}

func TestReportServiceListBatchesLogCounts(t *testing.T) {
	f := newReportFixture(t)
	_, err := f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)
	f.reports.reports["report-2"] = &models.Report{ID: "report-2", CreatedBy: "user-1", CreatedAt: time.Now().UTC()}
	f.logs.entries = punchEntries("emp-1", time.Now().UTC().Add(-24*time.Hour))

	items, pagination, err := f.svc.List(context.Background(), models.ReportFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, pagination)
	assert.Equal(t, 2, pagination.TotalCount)
	for _, item := range items {
		assert.Equal(t, 2, item.LogCount)
	}
	// One grouped count query covers the whole page.
	assert.Equal(t, 1, f.logs.countCalls)
}

func TestReportServiceAssignLogsRequiresAtLeastOne(t *testing.T) {
	f := newReportFixture(t)
	report, err := f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)

	err = f.svc.AssignLogs(context.Background(), report.ID, dto.AssignLogsRequest{}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceAssignLogsRejectedAfterGeneration(t *testing.T) {
	f := newReportFixture(t)
	report, err := f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)

	generatedAt := time.Now().UTC()
	f.reports.reports[report.ID].ShiftsGeneratedAt = &generatedAt

	err = f.svc.AssignLogs(context.Background(), report.ID, dto.AssignLogsRequest{LogIDs: []string{"log-1"}}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrShiftsGenerated.Code, appErrors.FromError(err).Code)
}

func TestReportServiceGeneratePDFRequiresShifts(t *testing.T) {
	f := newReportFixture(t)
	report, err := f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)
	f.logs.entries = punchEntries("emp-1", time.Now().UTC().Add(-24*time.Hour))

	_, err = f.svc.GeneratePDF(context.Background(), report.ID, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestReportServiceGeneratePDFAndDownload(t *testing.T) {
	f := newReportFixture(t)
	report, err := f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	f.logs.entries = punchEntries("emp-1", start)
	generatedAt := time.Now().UTC()
	f.reports.reports[report.ID].ShiftsGeneratedAt = &generatedAt
	f.shifts.records = []models.ShiftRecord{
		{
			Shift:        models.Shift{ID: "shift-1", ReportID: report.ID, EmployeeID: "emp-1", StartAt: start, EndAt: start.Add(8 * time.Hour), Duration: 8 * time.Hour},
			EmployeeName: "Worker One",
		},
	}

	resp, err := f.svc.GeneratePDF(context.Background(), report.ID, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.DownloadURL)
	assert.Equal(t, filepath.Join("pdf", report.ID+".pdf"), filepath.FromSlash(f.reports.pdfPath))

	reportID, file, err := f.svc.ResolveDownload(context.Background(), resp.DownloadURL)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, report.ID, reportID)

	info, err := file.Stat()
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestReportServiceResolveDownloadRejectsBadToken(t *testing.T) {
	f := newReportFixture(t)
	_, file, err := f.svc.ResolveDownload(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	if file != nil {
		file.Close()
		t.Fatal("expected no file handle")
	}
}

func TestReportServiceExportShiftsCSV(t *testing.T) {
	f := newReportFixture(t)
	report, err := f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)

	generatedAt := time.Now().UTC()
	f.reports.reports[report.ID].ShiftsGeneratedAt = &generatedAt
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	f.shifts.records = []models.ShiftRecord{
		{
			Shift:        models.Shift{ID: "shift-1", ReportID: report.ID, EmployeeID: "emp-1", StartAt: start, EndAt: start.Add(4 * time.Hour), Duration: 4 * time.Hour},
			EmployeeName: "Worker One",
		},
	}

	payload, err := f.svc.ExportShiftsCSV(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Worker One")
	assert.Contains(t, string(payload), "4h0m0s")
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/terminusgps/timekeeper-api/internal/dto"
	"github.com/terminusgps/timekeeper-api/internal/models"
	"github.com/terminusgps/timekeeper-api/internal/timeclock"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
	"github.com/terminusgps/timekeeper-api/pkg/export"
)

type reportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
	AssignLogs(ctx context.Context, reportID string, logIDs []string) error
	SetPDF(ctx context.Context, reportID, pdfPath string, generatedAt time.Time) error
}

type reportLogRepository interface {
	ListByReport(ctx context.Context, reportID string) ([]models.LogEntry, error)
	CountByReport(ctx context.Context, reportID string) (int, error)
	CountByReports(ctx context.Context, reportIDs []string) (map[string]int, error)
}

type reportShiftRepository interface {
	InsertGenerated(ctx context.Context, reportID string, shifts []models.Shift, generatedAt time.Time) error
	ListByReport(ctx context.Context, reportID string) ([]models.ShiftRecord, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, generatedAt time.Time) ([]byte, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type reportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type downloadSigner interface {
	Generate(reportID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error)
}

// ReportService owns the report lifecycle: creation, log assignment, shift
// generation and PDF rendering. Shift generation and PDF rendering run
// synchronously inside the request; there is no background queue.
type ReportService struct {
	reports   reportRepository
	logs      reportLogRepository
	shifts    reportShiftRepository
	audit     auditRecorder
	cache     *CacheService
	shiftTTL  time.Duration
	metrics   *MetricsService
	pdf       pdfRenderer
	csv       csvRenderer
	storage   reportStorage
	signer    downloadSigner
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(reports reportRepository, logs reportLogRepository, shifts reportShiftRepository, audit auditRecorder, cache *CacheService, shiftTTL time.Duration, metrics *MetricsService, pdf pdfRenderer, csv csvRenderer, storage reportStorage, signer downloadSigner, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		reports:   reports,
		logs:      logs,
		shifts:    shifts,
		audit:     audit,
		cache:     cache,
		shiftTTL:  shiftTTL,
		metrics:   metrics,
		pdf:       pdf,
		csv:       csv,
		storage:   storage,
		signer:    signer,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new empty report for the acting operator.
func (s *ReportService) Create(ctx context.Context, createdBy string) (*dto.ReportResponse, error) {
	report := &models.Report{CreatedBy: createdBy}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}
	s.recordAudit(ctx, createdBy, models.AuditActionReportCreate, report.ID, `{"status":"created"}`)
	resp := s.toResponse(report, 0)
	return &resp, nil
}

// Get returns one report with its log count and, when a PDF exists, a fresh
// signed download link.
func (s *ReportService) Get(ctx context.Context, id string) (*dto.ReportResponse, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.logs.CountByReport(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count report logs")
	}
	resp := s.toResponse(report, count)
	return &resp, nil
}

// List returns reports matching the filter, newest first.
func (s *ReportService) List(ctx context.Context, filter models.ReportFilter) ([]dto.ReportResponse, *models.Pagination, error) {
	reports, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	ids := make([]string, 0, len(reports))
	for i := range reports {
		ids = append(ids, reports[i].ID)
	}
	counts, err := s.logs.CountByReports(ctx, ids)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count report logs")
	}
	items := make([]dto.ReportResponse, 0, len(reports))
	for i := range reports {
		items = append(items, s.toResponse(&reports[i], counts[reports[i].ID]))
	}
	pagination := models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return items, &pagination, nil
}

// AssignLogs attaches log entries to a report. At least one entry is
// required, duplicates are ignored, and assignment is rejected once shifts
// have been generated so the stored shifts always reflect the assigned logs.
func (s *ReportService) AssignLogs(ctx context.Context, reportID string, req dto.AssignLogsRequest, actorID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "at least one log entry is required")
	}
	report, err := s.load(ctx, reportID)
	if err != nil {
		return err
	}
	if report.ShiftsGenerated() {
		return appErrors.Clone(appErrors.ErrShiftsGenerated, "cannot assign logs after shift generation")
	}
	if err := s.reports.AssignLogs(ctx, reportID, req.LogIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign logs")
	}
	s.recordAudit(ctx, actorID, models.AuditActionReportAssign, reportID, fmt.Sprintf(`{"assigned":%d}`, len(req.LogIDs)))
	return nil
}

// GenerateShifts reconstructs shifts from the report's assigned logs and
// stores them. Preconditions: the report has at least one assigned log and
// shifts have not been generated before. Generation runs once; zero
// reconstructed shifts still marks the report as generated.
func (s *ReportService) GenerateShifts(ctx context.Context, reportID, actorID string) (*dto.GenerateShiftsResponse, error) {
	report, err := s.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.ShiftsGenerated() {
		return nil, appErrors.Clone(appErrors.ErrShiftsGenerated, "shifts already generated for report")
	}
	count, err := s.logs.CountByReport(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count report logs")
	}
	if count == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "report has no assigned logs")
	}

	queryStart := time.Now()
	entries, err := s.logs.ListByReport(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report logs")
	}
	s.metrics.ObserveDBQuery("report_logs", time.Since(queryStart))

	shifts := timeclock.Reconstruct(entries)
	generatedAt := s.now()
	insertStart := time.Now()
	if err := s.shifts.InsertGenerated(ctx, reportID, shifts, generatedAt); err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrShiftsGenerated.Code {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store shifts")
	}
	s.metrics.ObserveDBQuery("shifts_insert", time.Since(insertStart))

	s.metrics.RecordShiftsGenerated(len(shifts))
	s.recordAudit(ctx, actorID, models.AuditActionReportShifts, reportID, fmt.Sprintf(`{"shifts":%d}`, len(shifts)))

	return &dto.GenerateShiftsResponse{ReportID: reportID, ShiftCount: len(shifts), GeneratedAt: generatedAt}, nil
}

// ListShifts returns the report's stored shifts. Once generated the shift set
// never changes, so generated reports are served from cache when available.
func (s *ReportService) ListShifts(ctx context.Context, reportID string) ([]dto.ShiftResponse, error) {
	report, err := s.load(ctx, reportID)
	if err != nil {
		return nil, err
	}

	cacheKey := "reports:shifts:" + reportID
	if report.ShiftsGenerated() && s.cache.Enabled() {
		var cached []dto.ShiftResponse
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return cached, nil
		}
	}

	records, err := s.shifts.ListByReport(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list shifts")
	}
	items := make([]dto.ShiftResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, dto.ShiftFromRecord(rec))
	}

	if report.ShiftsGenerated() && s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, items, s.shiftTTL); err != nil {
			s.logger.Debug("shift cache write failed", zap.Error(err))
		}
	}
	return items, nil
}

// GeneratePDF renders the report's shifts to a PDF on disk and returns a
// signed download link. Preconditions: the report has assigned logs and
// shifts have been generated. Rendering again replaces the stored file.
func (s *ReportService) GeneratePDF(ctx context.Context, reportID, actorID string) (*dto.GeneratePDFResponse, error) {
	report, err := s.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	count, err := s.logs.CountByReport(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count report logs")
	}
	if count == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "report has no assigned logs")
	}
	if !report.ShiftsGenerated() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "shifts have not been generated for report")
	}

	records, err := s.shifts.ListByReport(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shifts")
	}

	generatedAt := s.now()
	data := shiftDataset(records)
	payload, err := s.pdf.Render(data, fmt.Sprintf("Timekeeper Report %s", shortID(reportID)), generatedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}

	relPath := fmt.Sprintf("pdf/%s.pdf", reportID)
	if _, err := s.storage.Save(relPath, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store pdf")
	}
	if err := s.reports.SetPDF(ctx, reportID, relPath, generatedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record pdf")
	}

	token, expiresAt, err := s.signer.Generate(reportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	s.metrics.RecordReportPDF()
	s.recordAudit(ctx, actorID, models.AuditActionReportPDF, reportID, `{"status":"rendered"}`)

	return &dto.GeneratePDFResponse{ReportID: reportID, DownloadURL: token, ExpiresAt: expiresAt}, nil
}

// ExportShiftsCSV renders the report's shifts as CSV for spreadsheet use.
// Requires generated shifts, like PDF rendering.
func (s *ReportService) ExportShiftsCSV(ctx context.Context, reportID string) ([]byte, error) {
	report, err := s.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !report.ShiftsGenerated() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "shifts have not been generated for report")
	}
	records, err := s.shifts.ListByReport(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shifts")
	}
	payload, err := s.csv.Render(shiftDataset(records))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return payload, nil
}

// ResolveDownload validates a signed token and opens the referenced PDF.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (string, *os.File, error) {
	reportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	report, err := s.load(ctx, reportID)
	if err != nil {
		return "", nil, err
	}
	if !report.HasPDF() || *report.PDFPath != relPath {
		return "", nil, appErrors.Clone(appErrors.ErrNotFound, "report pdf not found")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report pdf missing from storage")
	}
	return reportID, file, nil
}

func (s *ReportService) load(ctx context.Context, id string) (*models.Report, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

func (s *ReportService) toResponse(report *models.Report, logCount int) dto.ReportResponse {
	resp := dto.ReportResponse{
		ID:                report.ID,
		CreatedBy:         report.CreatedBy,
		CreatedAt:         report.CreatedAt,
		LogCount:          logCount,
		ShiftsGeneratedAt: report.ShiftsGeneratedAt,
		PDFGeneratedAt:    report.PDFGeneratedAt,
	}
	if report.HasPDF() && s.signer != nil {
		if token, _, err := s.signer.Generate(report.ID, *report.PDFPath); err == nil {
			resp.PDFURL = &token
		}
	}
	return resp
}

func (s *ReportService) recordAudit(ctx context.Context, actorID, action, resourceID, payload string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "report",
		ResourceID: &resourceID,
		NewValues:  []byte(payload),
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

// shiftDataset groups shifts per employee with a section row per group and a
// per-employee total row. Input is already ordered by employee then start.
func shiftDataset(records []models.ShiftRecord) export.Dataset {
	data := export.Dataset{Headers: []string{"Start", "End", "Duration"}}
	current := ""
	var total time.Duration
	flush := func() {
		if current != "" {
			data.Rows = append(data.Rows, map[string]string{
				"Start":    "Total",
				"End":      "",
				"Duration": total.String(),
			})
		}
		total = 0
	}
	for _, rec := range records {
		if rec.EmployeeName != current {
			flush()
			current = rec.EmployeeName
			data.Rows = append(data.Rows, map[string]string{export.SectionKey: current})
		}
		data.Rows = append(data.Rows, map[string]string{
			"Start":    rec.StartAt.Format("2006-01-02 15:04"),
			"End":      rec.EndAt.Format("2006-01-02 15:04"),
			"Duration": rec.Duration.String(),
		})
		total += rec.Duration
	}
	flush()
	return data
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

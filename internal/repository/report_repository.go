package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/terminusgps/timekeeper-api/internal/models"
)

// ReportRepository persists reports and their log-entry membership.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, created_by, created_at, shifts_generated_at, pdf_path, pdf_generated_at`

// Create inserts a new report row.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO reports (id, created_by, created_at) VALUES (:id, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// GetByID returns a report row by identifier.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE id = $1 LIMIT 1`, reportColumns)
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &report, nil
}

// List returns report rows matching the filter, newest first.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	where := "1=1"
	args := []interface{}{}
	if filter.CreatedBy != "" {
		where = "created_by = $1"
		args = append(args, filter.CreatedBy)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM reports WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, reportColumns, where, size, offset)
	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM reports WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	return reports, total, nil
}

// AssignLogs attaches log entries to a report. Existing assignments are kept;
// duplicates are ignored. Log entries themselves are never modified.
func (r *ReportRepository) AssignLogs(ctx context.Context, reportID string, logIDs []string) error {
	if len(logIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assign logs: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	const query = `INSERT INTO report_logs (report_id, log_entry_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, logID := range logIDs {
		if _, err := tx.ExecContext(ctx, query, reportID, logID); err != nil {
			return fmt.Errorf("assign log %s: %w", logID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assign logs: %w", err)
	}
	committed = true
	return nil
}

// SetPDF records the rendered PDF location and timestamp.
func (r *ReportRepository) SetPDF(ctx context.Context, reportID, pdfPath string, generatedAt time.Time) error {
	const query = `UPDATE reports SET pdf_path = $2, pdf_generated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, reportID, pdfPath, generatedAt); err != nil {
		return fmt.Errorf("set report pdf: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/terminusgps/timekeeper-api/internal/models"
)

func TestReportRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reports")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	report := &models.Report{CreatedBy: "user-1"}
	require.NoError(t, repo.Create(context.Background(), report))
	require.NotEmpty(t, report.ID)
	require.False(t, report.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "created_by", "created_at", "shifts_generated_at", "pdf_path", "pdf_generated_at"}).
		AddRow("report-1", "user-1", now, now, "pdf/report-1.pdf", now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, created_by, created_at, shifts_generated_at, pdf_path, pdf_generated_at FROM reports WHERE id = $1")).
		WithArgs("report-1").
		WillReturnRows(rows)

	report, err := repo.GetByID(context.Background(), "report-1")
	require.NoError(t, err)
	require.True(t, report.ShiftsGenerated())
	require.True(t, report.HasPDF())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryAssignLogsIgnoresDuplicates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_logs (report_id, log_entry_id) VALUES ($1, $2) ON CONFLICT DO NOTHING")).
		WithArgs("report-1", "log-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_logs (report_id, log_entry_id) VALUES ($1, $2) ON CONFLICT DO NOTHING")).
		WithArgs("report-1", "log-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.AssignLogs(context.Background(), "report-1", []string{"log-1", "log-2"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositorySetPDF(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	generatedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET pdf_path = $2, pdf_generated_at = $3 WHERE id = $1")).
		WithArgs("report-1", "pdf/report-1.pdf", generatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetPDF(context.Background(), "report-1", "pdf/report-1.pdf", generatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

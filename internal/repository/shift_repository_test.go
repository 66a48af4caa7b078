package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/terminusgps/timekeeper-api/internal/models"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
)

func TestShiftRepositoryInsertGenerated(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShiftRepository(db)

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	generatedAt := end.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT shifts_generated_at FROM reports WHERE id = $1 FOR UPDATE")).
		WithArgs("report-1").
		WillReturnRows(sqlmock.NewRows([]string{"shifts_generated_at"}).AddRow(nil))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO shifts")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET shifts_generated_at = $2 WHERE id = $1")).
		WithArgs("report-1", generatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	shifts := []models.Shift{{EmployeeID: "emp-1", StartAt: start, EndAt: end}}
	require.NoError(t, repo.InsertGenerated(context.Background(), "report-1", shifts, generatedAt))
	require.Equal(t, "report-1", shifts[0].ReportID)
	require.Equal(t, 8*time.Hour, shifts[0].Duration)
	require.NotEmpty(t, shifts[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftRepositoryInsertGeneratedRejectsSecondGeneration(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShiftRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT shifts_generated_at FROM reports WHERE id = $1 FOR UPDATE")).
		WithArgs("report-1").
		WillReturnRows(sqlmock.NewRows([]string{"shifts_generated_at"}).AddRow(time.Now()))
	mock.ExpectRollback()

	err := repo.InsertGenerated(context.Background(), "report-1", []models.Shift{}, time.Now())
	require.ErrorIs(t, err, appErrors.ErrShiftsGenerated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftRepositoryInsertGeneratedStampsEmptyResult(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShiftRepository(db)

	generatedAt := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT shifts_generated_at FROM reports WHERE id = $1 FOR UPDATE")).
		WithArgs("report-1").
		WillReturnRows(sqlmock.NewRows([]string{"shifts_generated_at"}).AddRow(nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET shifts_generated_at = $2 WHERE id = $1")).
		WithArgs("report-1", generatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Zero reconstructed shifts still marks the report as generated.
	require.NoError(t, repo.InsertGenerated(context.Background(), "report-1", nil, generatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftRepositoryListByReport(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShiftRepository(db)

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "report_id", "employee_id", "start_at", "end_at", "duration", "employee_name"}).
		AddRow("shift-1", "report-1", "emp-1", start, start.Add(4*time.Hour), 4*time.Hour, "Worker One")

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY u.full_name ASC, s.start_at ASC")).
		WithArgs("report-1").
		WillReturnRows(rows)

	shifts, err := repo.ListByReport(context.Background(), "report-1")
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	require.Equal(t, "Worker One", shifts[0].EmployeeName)
	require.NoError(t, mock.ExpectationsWereMet())
}

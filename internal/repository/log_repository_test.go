package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/terminusgps/timekeeper-api/internal/models"
)

func TestLogRepositoryListFiltersByEmployee(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "employee_id", "action", "recorded_at", "seq", "employee_name"}).
		AddRow("log-2", "emp-1", "PUNCH_OUT", now, int64(2), "Worker One").
		AddRow("log-1", "emp-1", "PUNCH_IN", now.Add(-time.Hour), int64(1), "Worker One")

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY l.recorded_at DESC, l.seq DESC")).
		WithArgs("emp-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("emp-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	entries, total, err := repo.List(context.Background(), models.LogEntryFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, entries, 2)
	require.Equal(t, models.ActionPunchOut, entries[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepositoryListByReportOrdersForReconstruction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogRepository(db)

	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "employee_id", "action", "recorded_at", "seq"}).
		AddRow("log-1", "emp-1", "PUNCH_IN", at, int64(1)).
		AddRow("log-2", "emp-1", "PUNCH_OUT", at.Add(8*time.Hour), int64(2))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY l.recorded_at ASC, l.seq ASC")).
		WithArgs("report-1").
		WillReturnRows(rows)

	entries, err := repo.ListByReport(context.Background(), "report-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, models.ActionPunchIn, entries[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepositoryCountByReportsGroupsInOneQuery(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY report_id")).
		WithArgs(pq.Array([]string{"report-1", "report-2"})).
		WillReturnRows(sqlmock.NewRows([]string{"report_id", "count"}).
			AddRow("report-1", 4))

	counts, err := repo.CountByReports(context.Background(), []string{"report-1", "report-2"})
	require.NoError(t, err)
	require.Equal(t, 4, counts["report-1"])
	// Reports without assigned logs simply have no row.
	_, ok := counts["report-2"]
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepositoryCountByReportsEmptyInputSkipsQuery(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogRepository(db)

	counts, err := repo.CountByReports(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepositoryCountByReport(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM report_logs WHERE report_id = $1")).
		WithArgs("report-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountByReport(context.Background(), "report-1")
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

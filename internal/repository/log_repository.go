package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/terminusgps/timekeeper-api/internal/models"
)

// LogRepository reads the immutable punch log. Entries are only ever written
// through EmployeeRepository.UpdateWithLogs; nothing updates or deletes them.
type LogRepository struct {
	db *sqlx.DB
}

// NewLogRepository constructs the repository.
func NewLogRepository(db *sqlx.DB) *LogRepository {
	return &LogRepository{db: db}
}

const logColumns = `l.id, l.employee_id, l.action, l.recorded_at, l.seq`

// List returns log entries matching the filter, newest first.
func (r *LogRepository) List(ctx context.Context, filter models.LogEntryFilter) ([]models.LogEntryRecord, int, error) {
	base := `FROM log_entries l JOIN employees e ON e.id = l.employee_id JOIN users u ON u.id = e.user_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.EmployeeID != "" {
		where = append(where, fmt.Sprintf("l.employee_id = $%d", len(args)+1))
		args = append(args, filter.EmployeeID)
	}
	if filter.Action != nil && filter.Action.Valid() {
		where = append(where, fmt.Sprintf("l.action = $%d", len(args)+1))
		args = append(args, *filter.Action)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("l.recorded_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("l.recorded_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, u.full_name AS employee_name %s WHERE %s ORDER BY l.recorded_at DESC, l.seq DESC LIMIT %d OFFSET %d`,
		logColumns, base, whereClause, size, offset)

	var rows []models.LogEntryRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list log entries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count log entries: %w", err)
	}
	return rows, total, nil
}

// ListByReport returns a report's log entries in reconstruction order:
// recorded_at ascending with seq breaking same-timestamp ties.
func (r *LogRepository) ListByReport(ctx context.Context, reportID string) ([]models.LogEntry, error) {
	const query = `SELECT l.id, l.employee_id, l.action, l.recorded_at, l.seq
FROM log_entries l JOIN report_logs rl ON rl.log_entry_id = l.id
WHERE rl.report_id = $1
ORDER BY l.recorded_at ASC, l.seq ASC`
	var entries []models.LogEntry
	if err := r.db.SelectContext(ctx, &entries, query, reportID); err != nil {
		return nil, fmt.Errorf("list report log entries: %w", err)
	}
	return entries, nil
}

// CountByReports returns log-entry counts for several reports in one grouped
// query. Reports with no assigned logs are absent from the result.
func (r *LogRepository) CountByReports(ctx context.Context, reportIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(reportIDs))
	if len(reportIDs) == 0 {
		return counts, nil
	}
	const query = `SELECT report_id, COUNT(*) FROM report_logs WHERE report_id = ANY($1) GROUP BY report_id`
	rows, err := r.db.QueryxContext(ctx, query, pq.Array(reportIDs))
	if err != nil {
		return nil, fmt.Errorf("count report log entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var reportID string
		var count int
		if err := rows.Scan(&reportID, &count); err != nil {
			return nil, fmt.Errorf("scan report log count: %w", err)
		}
		counts[reportID] = count
	}
	return counts, rows.Err()
}

// CountByReport returns how many log entries a report references.
func (r *LogRepository) CountByReport(ctx context.Context, reportID string) (int, error) {
	const query = `SELECT COUNT(*) FROM report_logs WHERE report_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, reportID); err != nil {
		return 0, fmt.Errorf("count report log entries: %w", err)
	}
	return count, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/terminusgps/timekeeper-api/internal/models"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
)

// ShiftRepository persists shifts derived from report logs.
type ShiftRepository struct {
	db *sqlx.DB
}

// NewShiftRepository constructs the repository.
func NewShiftRepository(db *sqlx.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// InsertGenerated stores a reconstruction result atomically and stamps the
// report's generation flag. The report row is locked for the duration of the
// transaction and the flag re-checked under the lock, so two concurrent
// generation requests cannot both insert: the loser observes the stamp and
// fails with ErrShiftsGenerated.
func (r *ShiftRepository) InsertGenerated(ctx context.Context, reportID string, shifts []models.Shift, generatedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin shift generation: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	var generated sql.NullTime
	const lockQuery = `SELECT shifts_generated_at FROM reports WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &generated, lockQuery, reportID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock report: %w", err)
	}
	if generated.Valid {
		return appErrors.ErrShiftsGenerated
	}

	const insertQuery = `INSERT INTO shifts (id, report_id, employee_id, start_at, end_at, duration)
VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range shifts {
		shift := &shifts[i]
		if shift.ID == "" {
			shift.ID = uuid.NewString()
		}
		shift.ReportID = reportID
		if shift.Duration == 0 {
			shift.Duration = shift.EndAt.Sub(shift.StartAt)
		}
		if _, err := tx.ExecContext(ctx, insertQuery, shift.ID, shift.ReportID, shift.EmployeeID, shift.StartAt, shift.EndAt, shift.Duration); err != nil {
			return fmt.Errorf("insert shift: %w", err)
		}
	}

	const stampQuery = `UPDATE reports SET shifts_generated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, stampQuery, reportID, generatedAt); err != nil {
		return fmt.Errorf("stamp shift generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit shift generation: %w", err)
	}
	committed = true
	return nil
}

// ListByReport returns a report's shifts with employee names, ordered by
// employee then start time for stable PDF rendering.
func (r *ShiftRepository) ListByReport(ctx context.Context, reportID string) ([]models.ShiftRecord, error) {
	const query = `SELECT s.id, s.report_id, s.employee_id, s.start_at, s.end_at, s.duration, u.full_name AS employee_name
FROM shifts s
JOIN employees e ON e.id = s.employee_id
JOIN users u ON u.id = e.user_id
WHERE s.report_id = $1
ORDER BY u.full_name ASC, s.start_at ASC`
	var shifts []models.ShiftRecord
	if err := r.db.SelectContext(ctx, &shifts, query, reportID); err != nil {
		return nil, fmt.Errorf("list report shifts: %w", err)
	}
	return shifts, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/terminusgps/timekeeper-api/internal/models"
)

// EmployeeRepository handles persistence for employees and their punch logs.
// Punch-log inserts happen inside the same transaction as the employee save
// so a crash can never leave a state change without its log entries.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `e.id, e.user_id, e.phone, e.title, e.code_cipher, e.code_digest, e.punched_in, e.created_at, e.updated_at`

// GetByID returns an employee joined with their account metadata.
func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*models.EmployeeRecord, error) {
	query := fmt.Sprintf(`SELECT %s, u.email, u.full_name FROM employees e JOIN users u ON u.id = e.user_id WHERE e.id = $1 LIMIT 1`, employeeColumns)
	var rec models.EmployeeRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return &rec, nil
}

// GetByCodeDigest resolves the employee owning a fingerprint code.
func (r *EmployeeRepository) GetByCodeDigest(ctx context.Context, digest string) (*models.EmployeeRecord, error) {
	query := fmt.Sprintf(`SELECT %s, u.email, u.full_name FROM employees e JOIN users u ON u.id = e.user_id WHERE e.code_digest = $1 LIMIT 1`, employeeColumns)
	var rec models.EmployeeRecord
	if err := r.db.GetContext(ctx, &rec, query, digest); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get employee by code: %w", err)
	}
	return &rec, nil
}

// List returns employee rows matching the provided filter.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.EmployeeRecord, int, error) {
	base := `FROM employees e JOIN users u ON u.id = e.user_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(LOWER(u.email) LIKE $%d OR LOWER(u.full_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.PunchedIn != nil {
		where = append(where, fmt.Sprintf("e.punched_in = $%d", len(args)+1))
		args = append(args, *filter.PunchedIn)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"email":      "u.email",
		"full_name":  "u.full_name",
		"created_at": "e.created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "u.full_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, u.email, u.full_name %s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		employeeColumns, base, whereClause, sortColumn, order, size, offset)

	var rows []models.EmployeeRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}
	return rows, total, nil
}

// Create inserts a user account and its employee row in one transaction.
// First saves never record log entries.
func (r *EmployeeRepository) Create(ctx context.Context, user *models.User, employee *models.Employee) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if employee.ID == "" {
		employee.ID = uuid.NewString()
	}
	employee.UserID = user.ID
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = now
	}
	employee.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create employee: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	const userQuery = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
VALUES (:id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("create employee user: %w", err)
	}

	const employeeQuery = `INSERT INTO employees (id, user_id, phone, title, code_cipher, code_digest, punched_in, created_at, updated_at)
VALUES (:id, :user_id, :phone, :title, :code_cipher, :code_digest, :punched_in, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, employeeQuery, employee); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create employee: %w", err)
	}
	committed = true
	return nil
}

// BulkCreate inserts many user/employee pairs atomically; any failure rolls
// the whole batch back.
func (r *EmployeeRepository) BulkCreate(ctx context.Context, users []models.User, employees []models.Employee) error {
	if len(users) != len(employees) {
		return fmt.Errorf("bulk create: %d users for %d employees", len(users), len(employees))
	}
	if len(users) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	now := time.Now().UTC()
	const userQuery = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
VALUES (:id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	const employeeQuery = `INSERT INTO employees (id, user_id, phone, title, code_cipher, code_digest, punched_in, created_at, updated_at)
VALUES (:id, :user_id, :phone, :title, :code_cipher, :code_digest, :punched_in, :created_at, :updated_at)`

	for i := range users {
		user := &users[i]
		employee := &employees[i]
		if user.ID == "" {
			user.ID = uuid.NewString()
		}
		user.CreatedAt = now
		user.UpdatedAt = now
		if employee.ID == "" {
			employee.ID = uuid.NewString()
		}
		employee.UserID = user.ID
		employee.CreatedAt = now
		employee.UpdatedAt = now

		if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
			return fmt.Errorf("bulk create user %s: %w", user.Email, err)
		}
		if _, err := tx.NamedExecContext(ctx, employeeQuery, employee); err != nil {
			return fmt.Errorf("bulk create employee %s: %w", user.Email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create: %w", err)
	}
	committed = true
	return nil
}

// UpdateWithLogs persists an employee update together with the log entries
// detected for it. The employee row update and every log insert share one
// transaction; entries receive their seq from the log_entries sequence, which
// preserves insertion order for same-timestamp pairs.
func (r *EmployeeRepository) UpdateWithLogs(ctx context.Context, employee *models.Employee, entries []models.LogEntry) error {
	employee.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin employee update: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	const updateQuery = `UPDATE employees SET phone = :phone, title = :title, code_cipher = :code_cipher, code_digest = :code_digest, punched_in = :punched_in, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updateQuery, employee); err != nil {
		return fmt.Errorf("update employee: %w", err)
	}

	const logQuery = `INSERT INTO log_entries (id, employee_id, action, recorded_at) VALUES ($1, $2, $3, $4) RETURNING seq`
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.EmployeeID = employee.ID
		if err := tx.GetContext(ctx, &entry.Seq, logQuery, entry.ID, entry.EmployeeID, entry.Action, entry.RecordedAt); err != nil {
			return fmt.Errorf("insert log entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit employee update: %w", err)
	}
	committed = true
	return nil
}

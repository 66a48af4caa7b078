package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/mail"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/terminusgps/timekeeper-api/internal/dto"
	"github.com/terminusgps/timekeeper-api/internal/models"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
	"github.com/terminusgps/timekeeper-api/pkg/secrets"
)

// ImportService ingests batch employee uploads. Accepted spreadsheets carry
// an Email column plus optional Full Name, Phone and Title columns; any other
// column is rejected. Every row becomes an account/employee pair and the
// whole file is applied atomically. Imported employees start punched out and
// without a fingerprint code.
type ImportService struct {
	repo      employeeRepository
	audit     auditRecorder
	cache     *CacheService
	passwords secrets.PasswordGenerator
	logger    *zap.Logger
	maxBytes  int64
}

// NewImportService constructs an ImportService.
func NewImportService(repo employeeRepository, audit auditRecorder, cache *CacheService, passwords secrets.PasswordGenerator, logger *zap.Logger, maxBytes int64) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if passwords == nil {
		passwords = secrets.RandomPasswordGenerator{}
	}
	if maxBytes <= 0 {
		maxBytes = 8 << 20
	}
	return &ImportService{repo: repo, audit: audit, cache: cache, passwords: passwords, logger: logger, maxBytes: maxBytes}
}

type importRow struct {
	Email    string
	FullName string
	Phone    string
	Title    string
}

// BatchImport parses and applies an uploaded roster file. Any invalid row
// aborts the whole import; nothing is persisted on failure.
func (s *ImportService) BatchImport(ctx context.Context, filename string, r io.Reader, actorID string) (*dto.BatchImportResult, error) {
	rows, err := s.parse(filename, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file contains no employee rows")
	}

	users := make([]models.User, 0, len(rows))
	employees := make([]models.Employee, 0, len(rows))
	emails := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))

	for i, row := range rows {
		line := i + 2 // header occupies line 1
		if _, err := mail.ParseAddress(row.Email); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: invalid email %q", line, row.Email))
		}
		email := strings.ToLower(row.Email)
		if _, dup := seen[email]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: duplicate email %q", line, row.Email))
		}
		seen[email] = struct{}{}

		fullName := row.FullName
		if fullName == "" {
			fullName = email
		}

		password, err := s.passwords.Generate()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}

		users = append(users, models.User{
			Email:        email,
			PasswordHash: string(hash),
			FullName:     fullName,
			Role:         models.RoleEmployee,
			Active:       true,
		})
		employee := models.Employee{}
		if row.Phone != "" {
			phone := row.Phone
			employee.Phone = &phone
		}
		if row.Title != "" {
			title := row.Title
			employee.Title = &title
		}
		employees = append(employees, employee)
		emails = append(emails, email)
	}

	if err := s.repo.BulkCreate(ctx, users, employees); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import employees")
	}

	if err := s.cache.Invalidate(ctx, employeeCachePattern); err != nil {
		s.logger.Debug("roster cache invalidation failed", zap.Error(err))
	}
	if s.audit != nil {
		payload := []byte(fmt.Sprintf(`{"created":%d}`, len(users)))
		entry := &models.AuditLog{Action: models.AuditActionEmployeeImport, Resource: "employee", NewValues: payload}
		if actorID != "" {
			entry.UserID = &actorID
		}
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to record import audit log", zap.Error(err))
		}
	}

	return &dto.BatchImportResult{Created: len(users), Emails: emails}, nil
}

func (s *ImportService) parse(filename string, r io.Reader) ([]importRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return s.parseCSV(r)
	case ".xlsx":
		return s.parseXLSX(r)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported file type: expected .csv or .xlsx")
	}
}

func (s *ImportService) parseCSV(r io.Reader) ([]importRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to parse csv")
	}
	return rowsFromTable(records)
}

func (s *ImportService) parseXLSX(r io.Reader) ([]importRow, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to parse xlsx")
	}
	defer book.Close() //nolint:errcheck

	sheet := book.GetSheetName(0)
	if sheet == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workbook has no sheets")
	}
	records, err := book.GetRows(sheet)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read worksheet")
	}
	return rowsFromTable(records)
}

func rowsFromTable(records [][]string) ([]importRow, error) {
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}

	known := map[string]struct{}{"email": {}, "full_name": {}, "phone": {}, "title": {}}
	columns := map[string]int{}
	for i, header := range records[0] {
		key := strings.ToLower(strings.TrimSpace(header))
		key = strings.ReplaceAll(key, " ", "_")
		if key == "" {
			continue
		}
		if _, ok := known[key]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unrecognized column: %q", strings.TrimSpace(header)))
		}
		columns[key] = i
	}
	emailCol, ok := columns["email"]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing required column: email")
	}
	nameCol, hasName := columns["full_name"]
	phoneCol, hasPhone := columns["phone"]
	titleCol, hasTitle := columns["title"]

	cell := func(row []string, idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	rows := make([]importRow, 0, len(records)-1)
	for _, record := range records[1:] {
		row := importRow{Email: cell(record, emailCol)}
		if row.Email == "" {
			continue
		}
		if hasName {
			row.FullName = cell(record, nameCol)
		}
		if hasPhone {
			row.Phone = cell(record, phoneCol)
		}
		if hasTitle {
			row.Title = cell(record, titleCol)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

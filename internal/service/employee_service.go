package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/terminusgps/timekeeper-api/internal/dto"
	"github.com/terminusgps/timekeeper-api/internal/models"
	"github.com/terminusgps/timekeeper-api/internal/timeclock"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
	"github.com/terminusgps/timekeeper-api/pkg/secrets"
)

type employeeRepository interface {
	GetByID(ctx context.Context, id string) (*models.EmployeeRecord, error)
	GetByCodeDigest(ctx context.Context, digest string) (*models.EmployeeRecord, error)
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.EmployeeRecord, int, error)
	Create(ctx context.Context, user *models.User, employee *models.Employee) error
	BulkCreate(ctx context.Context, users []models.User, employees []models.Employee) error
	UpdateWithLogs(ctx context.Context, employee *models.Employee, entries []models.LogEntry) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EmployeeService owns the employee lifecycle: roster management, the
// scanner-facing punch endpoint, and batch imports. Every state-changing save
// runs through transition detection so the punch log stays the single source
// of truth for shift reconstruction.
type EmployeeService struct {
	repo      employeeRepository
	audit     auditRecorder
	cache     *CacheService
	metrics   *MetricsService
	cipher    *secrets.Cipher
	passwords secrets.PasswordGenerator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEmployeeService constructs an EmployeeService.
func NewEmployeeService(repo employeeRepository, audit auditRecorder, cache *CacheService, metrics *MetricsService, cipher *secrets.Cipher, passwords secrets.PasswordGenerator, validate *validator.Validate, logger *zap.Logger) *EmployeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if passwords == nil {
		passwords = secrets.RandomPasswordGenerator{}
	}
	return &EmployeeService{
		repo:      repo,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		cipher:    cipher,
		passwords: passwords,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

const employeeCachePattern = "employees:*"

// Create registers an employee together with their account. The initial save
// records no log entries; the employee starts punched out.
func (s *EmployeeService) Create(ctx context.Context, req dto.CreateEmployeeRequest, actorID string) (*dto.EmployeeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid employee payload")
	}

	digest := secrets.Digest(req.Code)
	if existing, err := s.repo.GetByCodeDigest(ctx, digest); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "fingerprint code already assigned")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check fingerprint code")
	}

	cipherText, err := s.cipher.Encrypt(req.Code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to protect fingerprint code")
	}

	password, err := s.passwords.Generate()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         models.RoleEmployee,
		Active:       true,
	}
	employee := &models.Employee{
		Phone:      req.Phone,
		Title:      req.Title,
		CodeCipher: cipherText,
		CodeDigest: digest,
		PunchedIn:  false,
	}

	if err := s.repo.Create(ctx, user, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create employee")
	}

	s.invalidateRoster(ctx)
	s.recordAudit(ctx, actorID, models.AuditActionEmployeeCreate, employee.ID, map[string]string{"email": user.Email})

	resp := dto.EmployeeFromRecord(models.EmployeeRecord{Employee: *employee, Email: user.Email, FullName: user.FullName})
	return &resp, nil
}

// Get returns one employee by id.
func (s *EmployeeService) Get(ctx context.Context, id string) (*dto.EmployeeResponse, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	resp := dto.EmployeeFromRecord(*rec)
	return &resp, nil
}

// List returns the employee roster with pagination metadata, served from
// cache when possible. The boolean reports whether the roster came from cache.
func (s *EmployeeService) List(ctx context.Context, filter models.EmployeeFilter) ([]dto.EmployeeResponse, *models.Pagination, bool, error) {
	type cachedRoster struct {
		Items      []dto.EmployeeResponse `json:"items"`
		Pagination models.Pagination      `json:"pagination"`
	}

	cacheKey := fmt.Sprintf("employees:list:%s:%v:%d:%d:%s:%s", filter.Search, filter.PunchedIn, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
	if s.cache.Enabled() {
		var cached cachedRoster
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return cached.Items, &cached.Pagination, true, nil
		}
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}

	items := make([]dto.EmployeeResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.EmployeeFromRecord(row))
	}
	pagination := models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, cachedRoster{Items: items, Pagination: pagination}, 0); err != nil {
			s.logger.Debug("roster cache write failed", zap.Error(err))
		}
	}
	return items, &pagination, false, nil
}

// Update applies a partial employee update. The previously persisted row is
// the comparison snapshot: flipping the punch state logs PUNCH_IN or
// PUNCH_OUT, changing the code logs ASSIGN_CODE, and a save doing both logs
// both with a shared timestamp. The row update and its log entries commit in
// one transaction.
func (s *EmployeeService) Update(ctx context.Context, id string, req dto.UpdateEmployeeRequest, actorID string) (*dto.EmployeeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid employee payload")
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}

	// Imported employees start without a code; an empty cipher decodes to the
	// empty snapshot so the first assignment logs ASSIGN_CODE.
	prevCode := ""
	if rec.CodeCipher != "" {
		prevCode, err = s.cipher.Decrypt(rec.CodeCipher)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read fingerprint code")
		}
	}
	prev := timeclock.Snapshot{PunchedIn: rec.PunchedIn, Code: prevCode}

	employee := rec.Employee
	if req.Phone != nil {
		employee.Phone = req.Phone
	}
	if req.Title != nil {
		employee.Title = req.Title
	}
	next := prev
	if req.PunchedIn != nil {
		next.PunchedIn = *req.PunchedIn
	}
	if req.Code != nil {
		next.Code = *req.Code
	}

	if next.Code != prev.Code {
		digest := secrets.Digest(next.Code)
		if existing, err := s.repo.GetByCodeDigest(ctx, digest); err == nil && existing != nil && existing.ID != id {
			return nil, appErrors.Clone(appErrors.ErrConflict, "fingerprint code already assigned")
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check fingerprint code")
		}
		cipherText, err := s.cipher.Encrypt(next.Code)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to protect fingerprint code")
		}
		employee.CodeCipher = cipherText
		employee.CodeDigest = digest
	}
	employee.PunchedIn = next.PunchedIn

	at := s.now()
	entries := entriesFromTransitions(timeclock.Detect(prev, next, at))

	if err := s.repo.UpdateWithLogs(ctx, &employee, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee")
	}

	for _, entry := range entries {
		if entry.Action.IsPunch() {
			s.metrics.RecordPunch(string(entry.Action))
		}
	}

	s.invalidateRoster(ctx)
	s.recordAudit(ctx, actorID, models.AuditActionEmployeeUpdate, employee.ID, map[string]string{"logEntries": fmt.Sprintf("%d", len(entries))})

	rec.Employee = employee
	resp := dto.EmployeeFromRecord(*rec)
	return &resp, nil
}

// Punch is the scanner entry point: the fingerprint code identifies the
// employee and the save toggles their punch state, recording the matching log
// entry. Unknown codes return not found without revealing anything else.
func (s *EmployeeService) Punch(ctx context.Context, req dto.PunchRequest) (*dto.PunchResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid punch payload")
	}

	rec, err := s.repo.GetByCodeDigest(ctx, secrets.Digest(req.Code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown fingerprint code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve fingerprint code")
	}

	prev := timeclock.Snapshot{PunchedIn: rec.PunchedIn, Code: req.Code}
	next := timeclock.Snapshot{PunchedIn: !rec.PunchedIn, Code: req.Code}

	at := s.now()
	entries := entriesFromTransitions(timeclock.Detect(prev, next, at))

	employee := rec.Employee
	employee.PunchedIn = next.PunchedIn
	if err := s.repo.UpdateWithLogs(ctx, &employee, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record punch")
	}

	for _, entry := range entries {
		s.metrics.RecordPunch(string(entry.Action))
	}
	s.invalidateRoster(ctx)

	return &dto.PunchResponse{
		EmployeeID: employee.ID,
		PunchedIn:  employee.PunchedIn,
		RecordedAt: at,
	}, nil
}

func (s *EmployeeService) invalidateRoster(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, employeeCachePattern); err != nil {
		s.logger.Debug("roster cache invalidation failed", zap.Error(err))
	}
}

func (s *EmployeeService) recordAudit(ctx context.Context, actorID, action, resourceID string, values map[string]string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "employee",
		ResourceID: &resourceID,
		NewValues:  payload,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func entriesFromTransitions(transitions []timeclock.Transition) []models.LogEntry {
	entries := make([]models.LogEntry, 0, len(transitions))
	for _, tr := range transitions {
		entries = append(entries, models.LogEntry{Action: tr.Action, RecordedAt: tr.At})
	}
	return entries
}

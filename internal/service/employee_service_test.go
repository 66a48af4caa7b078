package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/terminusgps/timekeeper-api/internal/dto"
	"github.com/terminusgps/timekeeper-api/internal/models"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
	"github.com/terminusgps/timekeeper-api/pkg/secrets"
)

type mockEmployeeRepo struct {
	byID        map[string]*models.EmployeeRecord
	byDigest    map[string]*models.EmployeeRecord
	created     []*models.Employee
	bulkUsers   []models.User
	updated     *models.Employee
	updatedLogs []models.LogEntry
	updateErr   error
	auditLogs   []*models.AuditLog
}

func newMockEmployeeRepo() *mockEmployeeRepo {
	return &mockEmployeeRepo{
		byID:     make(map[string]*models.EmployeeRecord),
		byDigest: make(map[string]*models.EmployeeRecord),
	}
}

func (m *mockEmployeeRepo) add(rec *models.EmployeeRecord) {
	m.byID[rec.ID] = rec
	if rec.CodeDigest != "" {
		m.byDigest[rec.CodeDigest] = rec
	}
}

func (m *mockEmployeeRepo) GetByID(ctx context.Context, id string) (*models.EmployeeRecord, error) {
	rec, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *rec
	return &copied, nil
}

func (m *mockEmployeeRepo) GetByCodeDigest(ctx context.Context, digest string) (*models.EmployeeRecord, error) {
	rec, ok := m.byDigest[digest]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *rec
	return &copied, nil
}

func (m *mockEmployeeRepo) List(ctx context.Context, filter models.EmployeeFilter) ([]models.EmployeeRecord, int, error) {
	rows := make([]models.EmployeeRecord, 0, len(m.byID))
	for _, rec := range m.byID {
		rows = append(rows, *rec)
	}
	return rows, len(rows), nil
}

func (m *mockEmployeeRepo) Create(ctx context.Context, user *models.User, employee *models.Employee) error {
	user.ID = "user-new"
	employee.ID = "emp-new"
	employee.UserID = user.ID
	m.created = append(m.created, employee)
	return nil
}

func (m *mockEmployeeRepo) BulkCreate(ctx context.Context, users []models.User, employees []models.Employee) error {
	m.bulkUsers = append(m.bulkUsers, users...)
	return nil
}

func (m *mockEmployeeRepo) UpdateWithLogs(ctx context.Context, employee *models.Employee, entries []models.LogEntry) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = employee
	m.updatedLogs = entries
	return nil
}

func (m *mockEmployeeRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type fixedPasswords struct{}

func (fixedPasswords) Generate() (string, error) { return "initial-password", nil }

func newEmployeeService(t *testing.T, repo *mockEmployeeRepo) *EmployeeService {
	t.Helper()
	cipher, err := secrets.NewCipher("test-key")
	require.NoError(t, err)
	return NewEmployeeService(repo, repo, nil, nil, cipher, fixedPasswords{}, validator.New(), zap.NewNop())
}

func seedEmployee(t *testing.T, repo *mockEmployeeRepo, svc *EmployeeService, code string, punchedIn bool) *models.EmployeeRecord {
	t.Helper()
	rec := &models.EmployeeRecord{
		Employee: models.Employee{ID: "emp-1", UserID: "user-1", PunchedIn: punchedIn},
		Email:    "worker@example.com",
		FullName: "Worker One",
	}
	if code != "" {
		cipherText, err := svc.cipher.Encrypt(code)
		require.NoError(t, err)
		rec.CodeCipher = cipherText
		rec.CodeDigest = secrets.Digest(code)
	}
	repo.add(rec)
	return rec
}

func TestEmployeeServiceCreateStartsPunchedOut(t *testing.T) {
	repo := newMockEmployeeRepo()
	svc := newEmployeeService(t, repo)

	resp, err := svc.Create(context.Background(), dto.CreateEmployeeRequest{
		Email:    "worker@example.com",
		FullName: "Worker One",
		Code:     "code-1",
	}, "admin-1")
	require.NoError(t, err)
	assert.False(t, resp.PunchedIn)
	require.Len(t, repo.created, 1)
	assert.Equal(t, secrets.Digest("code-1"), repo.created[0].CodeDigest)
	assert.NotEqual(t, "code-1", repo.created[0].CodeCipher)
	// Creation never writes punch-log entries.
	assert.Nil(t, repo.updatedLogs)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionEmployeeCreate, repo.auditLogs[0].Action)
}

func TestEmployeeServiceCreateRejectsDuplicateCode(t *testing.T) {
	repo := newMockEmployeeRepo()
	svc := newEmployeeService(t, repo)
	seedEmployee(t, repo, svc, "code-1", false)

	_, err := svc.Create(context.Background(), dto.CreateEmployeeRequest{
		Email:    "other@example.com",
		FullName: "Other",
		Code:     "code-1",
	}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceUpdatePunchInLogsEntry(t *testing.T) {
	repo := newMockEmployeeRepo()
	svc := newEmployeeService(t, repo)
	seedEmployee(t, repo, svc, "code-1", false)

	punchedIn := true
	resp, err := svc.Update(context.Background(), "emp-1", dto.UpdateEmployeeRequest{PunchedIn: &punchedIn}, "admin-1")
	require.NoError(t, err)
	assert.True(t, resp.PunchedIn)
	require.Len(t, repo.updatedLogs, 1)
	assert.Equal(t, models.ActionPunchIn, repo.updatedLogs[0].Action)
}

func TestEmployeeServiceUpdateCodeChangeLogsAssignCode(t *testing.T) {
	repo := newMockEmployeeRepo()
	svc := newEmployeeService(t, repo)
	seedEmployee(t, repo, svc, "code-1", false)

	newCode := "code-2"
	_, err := svc.Update(context.Background(), "emp-1", dto.UpdateEmployeeRequest{Code: &newCode}, "admin-1")
	require.NoError(t, err)
	require.Len(t, repo.updatedLogs, 1)
	assert.Equal(t, models.ActionAssignCode, repo.updatedLogs[0].Action)
	assert.Equal(t, secrets.Digest("code-2"), repo.updated.CodeDigest)
}

func TestEmployeeServiceUpdatePunchAndCodeShareTimestamp(t *testing.T) {
	repo := newMockEmployeeRepo()
	svc := newEmployeeService(t, repo)
	seedEmployee(t, repo, svc, "code-1", true)

	fixed := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	punchedIn := false
	newCode := "code-2"
	_, err := svc.Update(context.Background(), "emp-1", dto.UpdateEmployeeRequest{PunchedIn: &punchedIn, Code: &newCode}, "admin-1")
	require.NoError(t, err)
	require.Len(t, repo.updatedLogs, 2)
	// Punch transition is detected first, then the code change; both share
	// the save timestamp.
	assert.Equal(t, models.ActionPunchOut, repo.updatedLogs[0].Action)
	assert.Equal(t, models.ActionAssignCode, repo.updatedLogs[1].Action)
	assert.Equal(t, fixed, repo.updatedLogs[0].RecordedAt)
	assert.Equal(t, fixed, repo.updatedLogs[1].RecordedAt)
}

func TestEmployeeServiceUpdateNoChangeLogsNothing(t *testing.T) {
	repo := newMockEmployeeRepo()
	svc := newEmployeeService(t, repo)
	seedEmployee(t, repo, svc, "code-1", false)

	phone := "5550001111"
	_, err := svc.Update(context.Background(), "emp-1", dto.UpdateEmployeeRequest{Phone: &phone}, "admin-1")
	require.NoError(t, err)
	assert.Empty(t, repo.updatedLogs)
	require.NotNil(t, repo.updated)
	assert.Equal(t, &phone, repo.updated.Phone)
}

func TestEmployeeServicePunchTogglesState(t *testing.T) {
	repo := newMockEmployeeRepo()
	svc := newEmployeeService(t, repo)
	seedEmployee(t, repo, svc, "code-1", false)

	resp, err := svc.Punch(context.Background(), dto.PunchRequest{Code: "code-1"})
	require.NoError(t, err)
	assert.True(t, resp.PunchedIn)
	require.Len(t, repo.updatedLogs, 1)
	assert.Equal(t, models.ActionPunchIn, repo.updatedLogs[0].Action)

	// Simulate the persisted flip, then punch again.
	repo.byDigest[secrets.Digest("code-1")].PunchedIn = true
	resp, err = svc.Punch(context.Background(), dto.PunchRequest{Code: "code-1"})
	require.NoError(t, err)
	assert.False(t, resp.PunchedIn)
	assert.Equal(t, models.ActionPunchOut, repo.updatedLogs[0].Action)
}

func TestEmployeeServiceListWithoutCache(t *testing.T) {
	repo := newMockEmployeeRepo()
	svc := newEmployeeService(t, repo)
	seedEmployee(t, repo, svc, "code-1", false)

	employees, pagination, cacheHit, err := svc.List(context.Background(), models.EmployeeFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.False(t, cacheHit)
	require.Len(t, employees, 1)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestEmployeeServicePunchUnknownCode(t *testing.T) {
	repo := newMockEmployeeRepo()
	svc := newEmployeeService(t, repo)

	_, err := svc.Punch(context.Background(), dto.PunchRequest{Code: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

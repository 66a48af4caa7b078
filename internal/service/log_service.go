package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/terminusgps/timekeeper-api/internal/models"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
)

type logRepository interface {
	List(ctx context.Context, filter models.LogEntryFilter) ([]models.LogEntryRecord, int, error)
}

// LogService serves the operator-facing punch-log listing. The log itself is
// append-only; this service never writes.
type LogService struct {
	repo   logRepository
	logger *zap.Logger
}

// NewLogService constructs a LogService.
func NewLogService(repo logRepository, logger *zap.Logger) *LogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogService{repo: repo, logger: logger}
}

// List returns log entries matching the filter, newest first.
func (s *LogService) List(ctx context.Context, filter models.LogEntryFilter) ([]models.LogEntryRecord, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list log entries")
	}
	pagination := models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, &pagination, nil
}

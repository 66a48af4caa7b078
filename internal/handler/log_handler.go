package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/terminusgps/timekeeper-api/internal/models"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
	"github.com/terminusgps/timekeeper-api/pkg/response"
)

type logService interface {
	List(ctx context.Context, filter models.LogEntryFilter) ([]models.LogEntryRecord, *models.Pagination, error)
}

// LogHandler exposes the read-only punch log.
type LogHandler struct {
	logs logService
}

// NewLogHandler constructs the handler.
func NewLogHandler(logs logService) *LogHandler {
	return &LogHandler{logs: logs}
}

// List godoc
// @Summary List punch-log entries
// @Tags Logs
// @Produce json
// @Param employeeId query string false "Filter by employee"
// @Param action query string false "Filter by action"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /logs [get]
func (h *LogHandler) List(c *gin.Context) {
	filter := models.LogEntryFilter{
		EmployeeID: c.Query("employeeId"),
		Page:       intQuery(c, "page", 1),
		PageSize:   intQuery(c, "pageSize", 50),
	}
	if raw := c.Query("action"); raw != "" {
		action := models.LogAction(raw)
		if !action.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown log action"))
			return
		}
		filter.Action = &action
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
			return
		}
		filter.To = &to
	}

	entries, pagination, err := h.logs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

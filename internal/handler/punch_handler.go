package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/terminusgps/timekeeper-api/internal/dto"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
	"github.com/terminusgps/timekeeper-api/pkg/response"
)

type punchService interface {
	Punch(ctx context.Context, req dto.PunchRequest) (*dto.PunchResponse, error)
}

// PunchHandler is the fingerprint-scanner entry point. It authenticates by
// fingerprint code alone, not by JWT.
type PunchHandler struct {
	employees punchService
}

// NewPunchHandler constructs the handler.
func NewPunchHandler(employees punchService) *PunchHandler {
	return &PunchHandler{employees: employees}
}

// Punch godoc
// @Summary Record a punch
// @Description Toggles the punch state of the employee owning the code
// @Tags Punch
// @Accept json
// @Produce json
// @Param payload body dto.PunchRequest true "Fingerprint code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /punch [post]
func (h *PunchHandler) Punch(c *gin.Context) {
	var req dto.PunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid punch payload"))
		return
	}
	result, err := h.employees.Punch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

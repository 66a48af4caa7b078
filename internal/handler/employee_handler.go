package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/terminusgps/timekeeper-api/internal/dto"
	"github.com/terminusgps/timekeeper-api/internal/middleware"
	"github.com/terminusgps/timekeeper-api/internal/models"
	appErrors "github.com/terminusgps/timekeeper-api/pkg/errors"
	"github.com/terminusgps/timekeeper-api/pkg/response"
)

type employeeService interface {
	Create(ctx context.Context, req dto.CreateEmployeeRequest, actorID string) (*dto.EmployeeResponse, error)
	Get(ctx context.Context, id string) (*dto.EmployeeResponse, error)
	List(ctx context.Context, filter models.EmployeeFilter) ([]dto.EmployeeResponse, *models.Pagination, bool, error)
	Update(ctx context.Context, id string, req dto.UpdateEmployeeRequest, actorID string) (*dto.EmployeeResponse, error)
}

type importService interface {
	BatchImport(ctx context.Context, filename string, r io.Reader, actorID string) (*dto.BatchImportResult, error)
}

// EmployeeHandler exposes roster management endpoints.
type EmployeeHandler struct {
	employees employeeService
	imports   importService
}

// NewEmployeeHandler constructs the handler.
func NewEmployeeHandler(employees employeeService, imports importService) *EmployeeHandler {
	return &EmployeeHandler{employees: employees, imports: imports}
}

// Create godoc
// @Summary Register an employee
// @Description Creates an account and employee with a generated initial password
// @Tags Employees
// @Accept json
// @Produce json
// @Param payload body dto.CreateEmployeeRequest true "Employee payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /employees [post]
func (h *EmployeeHandler) Create(c *gin.Context) {
	var req dto.CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid employee payload"))
		return
	}
	employee, err := h.employees.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, employee)
}

// List godoc
// @Summary List employees
// @Tags Employees
// @Produce json
// @Param search query string false "Search by name or email"
// @Param punchedIn query bool false "Filter by punch state"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /employees [get]
func (h *EmployeeHandler) List(c *gin.Context) {
	filter := models.EmployeeFilter{
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      intQuery(c, "page", 1),
		PageSize:  intQuery(c, "pageSize", 50),
	}
	if raw := c.Query("punchedIn"); raw != "" {
		punchedIn, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "punchedIn must be a boolean"))
			return
		}
		filter.PunchedIn = &punchedIn
	}

	start := time.Now()
	employees, pagination, cacheHit, err := h.employees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, employees, pagination, meta)
}

// Get godoc
// @Summary Get one employee
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/{id} [get]
func (h *EmployeeHandler) Get(c *gin.Context) {
	employee, err := h.employees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}

// Update godoc
// @Summary Update an employee
// @Description Partial update; punch-state and code changes are recorded in the punch log
// @Tags Employees
// @Accept json
// @Produce json
// @Param id path string true "Employee ID"
// @Param payload body dto.UpdateEmployeeRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/{id} [patch]
func (h *EmployeeHandler) Update(c *gin.Context) {
	var req dto.UpdateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid employee payload"))
		return
	}
	employee, err := h.employees.Update(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}

// BatchImport godoc
// @Summary Import employees from a spreadsheet
// @Description Accepts a .csv or .xlsx upload with Email plus optional Full Name, Phone, Title columns
// @Tags Employees
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Roster file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /employees/import [post]
func (h *EmployeeHandler) BatchImport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file field is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.imports.BatchImport(c.Request.Context(), fileHeader.Filename, file, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

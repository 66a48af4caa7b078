package dto

import (
	"time"

	"github.com/terminusgps/timekeeper-api/internal/models"
)

// CreateEmployeeRequest captures POST /employees payload. The account is
// created alongside the employee with a generated initial password.
type CreateEmployeeRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"fullName" validate:"required"`
	Code     string  `json:"code" validate:"required"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=12"`
	Title    *string `json:"title,omitempty" validate:"omitempty,max=64"`
}

// UpdateEmployeeRequest captures PATCH /employees/:id payload. Nil fields are
// left untouched; changing Code or PunchedIn runs through the log recorder.
type UpdateEmployeeRequest struct {
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=12"`
	Title     *string `json:"title,omitempty" validate:"omitempty,max=64"`
	Code      *string `json:"code,omitempty" validate:"omitempty,min=1"`
	PunchedIn *bool   `json:"punchedIn,omitempty"`
}

// EmployeeResponse is the public shape of an employee row.
type EmployeeResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Phone     *string   `json:"phone,omitempty"`
	Title     *string   `json:"title,omitempty"`
	PunchedIn bool      `json:"punchedIn"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmployeeFromRecord maps a joined employee row to its response shape.
func EmployeeFromRecord(rec models.EmployeeRecord) EmployeeResponse {
	return EmployeeResponse{
		ID:        rec.ID,
		Email:     rec.Email,
		FullName:  rec.FullName,
		Phone:     rec.Phone,
		Title:     rec.Title,
		PunchedIn: rec.PunchedIn,
		CreatedAt: rec.CreatedAt,
	}
}

// BatchImportResult summarises an accepted batch employee upload.
type BatchImportResult struct {
	Created int      `json:"created"`
	Emails  []string `json:"emails"`
}

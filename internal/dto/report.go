package dto

import (
	"time"

	"github.com/terminusgps/timekeeper-api/internal/models"
)

// AssignLogsRequest captures POST /reports/:id/logs payload.
type AssignLogsRequest struct {
	LogIDs []string `json:"logIds" validate:"required,min=1,dive,required"`
}

// ReportResponse is the public shape of a report row.
type ReportResponse struct {
	ID                string     `json:"id"`
	CreatedBy         string     `json:"createdBy"`
	CreatedAt         time.Time  `json:"createdAt"`
	LogCount          int        `json:"logCount"`
	ShiftsGeneratedAt *time.Time `json:"shiftsGeneratedAt,omitempty"`
	PDFGeneratedAt    *time.Time `json:"pdfGeneratedAt,omitempty"`
	PDFURL            *string    `json:"pdfUrl,omitempty"`
}

// ShiftResponse is the public shape of a reconstructed shift.
type ShiftResponse struct {
	ID           string    `json:"id"`
	EmployeeID   string    `json:"employeeId"`
	EmployeeName string    `json:"employeeName"`
	StartAt      time.Time `json:"startAt"`
	EndAt        time.Time `json:"endAt"`
	Duration     string    `json:"duration"`
}

// ShiftFromRecord maps a joined shift row to its response shape.
func ShiftFromRecord(rec models.ShiftRecord) ShiftResponse {
	return ShiftResponse{
		ID:           rec.ID,
		EmployeeID:   rec.EmployeeID,
		EmployeeName: rec.EmployeeName,
		StartAt:      rec.StartAt,
		EndAt:        rec.EndAt,
		Duration:     rec.Duration.String(),
	}
}

// GenerateShiftsResponse summarises a completed shift generation run.
type GenerateShiftsResponse struct {
	ReportID    string    `json:"reportId"`
	ShiftCount  int       `json:"shiftCount"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// GeneratePDFResponse returns the signed download link for a rendered PDF.
type GeneratePDFResponse struct {
	ReportID    string    `json:"reportId"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

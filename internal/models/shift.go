package models

import "time"

// Shift is a reconstructed work interval between a matched punch-in and
// punch-out. Shifts are created only by report shift generation and are
// removed with their report (cascade).
type Shift struct {
	ID         string        `db:"id" json:"id"`
	ReportID   string        `db:"report_id" json:"report_id"`
	EmployeeID string        `db:"employee_id" json:"employee_id"`
	StartAt    time.Time     `db:"start_at" json:"start_at"`
	EndAt      time.Time     `db:"end_at" json:"end_at"`
	Duration   time.Duration `db:"duration" json:"duration"`
}

// ShiftRecord extends a shift row with employee metadata for listings and
// PDF rendering.
type ShiftRecord struct {
	Shift
	EmployeeName string `db:"employee_name" json:"employee_name"`
}

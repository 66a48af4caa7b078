package dto

import "time"

// PunchRequest is the scanner-facing payload: the fingerprint code identifies
// the employee and the save toggles their punch state.
type PunchRequest struct {
	Code string `json:"code" validate:"required"`
}

// PunchResponse reports the resulting punch state.
type PunchResponse struct {
	EmployeeID string    `json:"employeeId"`
	PunchedIn  bool      `json:"punchedIn"`
	RecordedAt time.Time `json:"recordedAt"`
}

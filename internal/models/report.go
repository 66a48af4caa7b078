package models

import "time"

// Report is an operator-curated collection of log entries from which shifts
// and a PDF are derived.
//
// ShiftsGeneratedAt is an explicit generation flag: it is stamped when shift
// generation runs, even when the selected logs yield zero shifts, so an empty
// result is distinguishable from "not yet generated".
type Report struct {
	ID                string     `db:"id" json:"id"`
	CreatedBy         string     `db:"created_by" json:"created_by"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	ShiftsGeneratedAt *time.Time `db:"shifts_generated_at" json:"shifts_generated_at,omitempty"`
	PDFPath           *string    `db:"pdf_path" json:"-"`
	PDFGeneratedAt    *time.Time `db:"pdf_generated_at" json:"pdf_generated_at,omitempty"`
}

// ShiftsGenerated reports whether shift generation has run for the report.
func (r *Report) ShiftsGenerated() bool {
	return r != nil && r.ShiftsGeneratedAt != nil
}

// HasPDF reports whether a PDF has been rendered for the report.
func (r *Report) HasPDF() bool {
	return r != nil && r.PDFPath != nil && *r.PDFPath != ""
}

// ReportFilter scopes report listing queries.
type ReportFilter struct {
	CreatedBy string
	Page      int
	PageSize  int
}

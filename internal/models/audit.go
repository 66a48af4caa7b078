package models

import "time"

// AuditAction constants represent operator actions to be logged. This is the
// HTTP-level audit trail and is separate from the employee punch log.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionEmployeeCreate = "EMPLOYEE_CREATE"
	AuditActionEmployeeUpdate = "EMPLOYEE_UPDATE"
	AuditActionEmployeeImport = "EMPLOYEE_IMPORT"
	AuditActionReportCreate   = "REPORT_CREATE"
	AuditActionReportAssign   = "REPORT_ASSIGN_LOGS"
	AuditActionReportShifts   = "REPORT_GENERATE_SHIFTS"
	AuditActionReportPDF      = "REPORT_GENERATE_PDF"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

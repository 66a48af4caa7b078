package models

import "time"

// LogAction enumerates the actions recorded in an employee's punch log.
type LogAction string

const (
	ActionPunchIn    LogAction = "PUNCH_IN"
	ActionPunchOut   LogAction = "PUNCH_OUT"
	ActionAssignCode LogAction = "ASSIGN_CODE"
	ActionCreated    LogAction = "CREATED"
	ActionUnknown    LogAction = "UNKNOWN"
)

// Valid returns true when the action is a supported value.
func (a LogAction) Valid() bool {
	switch a {
	case ActionPunchIn, ActionPunchOut, ActionAssignCode, ActionCreated, ActionUnknown:
		return true
	default:
		return false
	}
}

// IsPunch reports whether the action participates in shift pairing.
func (a LogAction) IsPunch() bool {
	return a == ActionPunchIn || a == ActionPunchOut
}

// LogEntry is an immutable punch-log record. Entries are only created as a
// side effect of an employee save; they are never updated or deleted.
// Seq breaks ties between entries recorded in the same save, which share an
// identical RecordedAt timestamp.
type LogEntry struct {
	ID         string    `db:"id" json:"id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	Action     LogAction `db:"action" json:"action"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
	Seq        int64     `db:"seq" json:"seq"`
}

// LogEntryRecord extends a log entry with employee metadata for listings.
type LogEntryRecord struct {
	LogEntry
	EmployeeName string `db:"employee_name" json:"employee_name"`
}

// LogEntryFilter scopes log listing queries.
type LogEntryFilter struct {
	EmployeeID string
	Action     *LogAction
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

package timeclock

import (
	"sort"

	"github.com/terminusgps/timekeeper-api/internal/models"
)

// Reconstruct derives shift intervals from a report's log entries by pairing
// punch events per employee.
//
// For each employee, entries are scanned in (recorded_at, seq) order while a
// single pending slot is maintained. Actions other than PUNCH_IN/PUNCH_OUT
// are skipped. A pending PUNCH_IN followed by a PUNCH_OUT emits a shift and
// clears the slot; any other combination overwrites the slot with the current
// entry. That reproduces the historical pairing policy exactly: a PUNCH_OUT
// with no prior PUNCH_IN lingers in the slot until displaced, and a second
// consecutive PUNCH_IN discards the first.
//
// Returned shifts carry employee, interval, and duration; the caller stamps
// identifiers and the owning report.
func Reconstruct(entries []models.LogEntry) []models.Shift {
	ordered := make([]models.LogEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].RecordedAt.Equal(ordered[j].RecordedAt) {
			return ordered[i].Seq < ordered[j].Seq
		}
		return ordered[i].RecordedAt.Before(ordered[j].RecordedAt)
	})

	byEmployee := make(map[string][]models.LogEntry)
	var employeeOrder []string
	for _, entry := range ordered {
		if _, seen := byEmployee[entry.EmployeeID]; !seen {
			employeeOrder = append(employeeOrder, entry.EmployeeID)
		}
		byEmployee[entry.EmployeeID] = append(byEmployee[entry.EmployeeID], entry)
	}

	var shifts []models.Shift
	for _, employeeID := range employeeOrder {
		shifts = append(shifts, pair(employeeID, byEmployee[employeeID])...)
	}
	return shifts
}

func pair(employeeID string, entries []models.LogEntry) []models.Shift {
	var shifts []models.Shift
	var pending *models.LogEntry

	for i := range entries {
		curr := &entries[i]
		if !curr.Action.IsPunch() {
			continue
		}

		if pending != nil && pending.Action == models.ActionPunchIn && curr.Action == models.ActionPunchOut {
			shifts = append(shifts, models.Shift{
				EmployeeID: employeeID,
				StartAt:    pending.RecordedAt,
				EndAt:      curr.RecordedAt,
				Duration:   curr.RecordedAt.Sub(pending.RecordedAt),
			})
			pending = nil
			continue
		}

		pending = curr
	}

	return shifts
}

// Package timeclock holds the pure timekeeping core: transition detection on
// employee saves and shift reconstruction from punch logs. It performs no I/O
// so both algorithms are testable in isolation from persistence.
package timeclock

import (
	"time"

	"github.com/terminusgps/timekeeper-api/internal/models"
)

// Snapshot captures the last observed employee state at a save boundary. The
// caller builds it from the row already persisted for the employee and
// compares it against the incoming values.
type Snapshot struct {
	PunchedIn bool
	Code      string
}

// Transition is a detected state change to be appended to the punch log.
type Transition struct {
	Action models.LogAction
	At     time.Time
}

// Detect compares the previously observed state with the incoming one and
// returns the log transitions an update-save must record.
//
// The punch-state check runs first and the code check runs independently
// after it, so a save that flips the punch state and rotates the code yields
// two transitions. Both share the single at timestamp; callers that need a
// deterministic order between them must preserve insertion order.
//
// Detect is never called for the initial save of a new employee; creation
// records no log entries.
func Detect(prev, next Snapshot, at time.Time) []Transition {
	var transitions []Transition

	if prev.PunchedIn != next.PunchedIn {
		action := models.ActionPunchOut
		if !prev.PunchedIn && next.PunchedIn {
			action = models.ActionPunchIn
		}
		transitions = append(transitions, Transition{Action: action, At: at})
	}

	if prev.Code != next.Code {
		transitions = append(transitions, Transition{Action: models.ActionAssignCode, At: at})
	}

	return transitions
}

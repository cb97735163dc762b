package maintenance

import (
	"fmt"
	"math"
	"time"

	"machine-fleet-backend/internal/model"
)

// DueSoonDays is the window, in days, in which a schedule counts as due soon.
const DueSoonDays = 7

// State is the machine-readable form of a maintenance status.
type State string

const (
	StateOverdue  State = "overdue"
	StateDueSoon  State = "due_soon"
	StateUpcoming State = "upcoming"
)

// Status describes when a schedule is next due relative to now.
type Status struct {
	State        State     `json:"state"`
	Label        string    `json:"label"`
	DaysUntilDue int       `json:"daysUntilDue"`
	NextDue      time.Time `json:"nextDue"`
}

// DaysUntilDue is the number of days from now until nextDue, rounded up.
func DaysUntilDue(nextDue, now time.Time) int {
	return int(math.Ceil(float64(nextDue.Sub(now)) / float64(24*time.Hour)))
}

// Resolve computes the status of schedule at now. It returns nil when there
// is no schedule; callers treat that as "not applicable".
func Resolve(schedule *model.MaintenanceSchedule, now time.Time) *Status {
	if schedule == nil {
		return nil
	}

	days := DaysUntilDue(schedule.NextDue, now)
	status := &Status{DaysUntilDue: days, NextDue: schedule.NextDue}
	switch {
	case days < 0:
		status.State = StateOverdue
		status.Label = "Overdue"
	case days <= DueSoonDays:
		status.State = StateDueSoon
		status.Label = "Due Soon"
	default:
		status.State = StateUpcoming
		status.Label = fmt.Sprintf("Due in %d days", days)
	}
	return status
}

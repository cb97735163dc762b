package maintenance

import (
	"errors"
	"fmt"
	"time"

	"machine-fleet-backend/internal/model"
)

// ErrTaskNotFound is returned when a task id is not part of the schedule.
var ErrTaskNotFound = errors.New("maintenance task not found")

// AddFrequency advances t by one unit of f. Unknown frequencies leave t as is.
func AddFrequency(t time.Time, f model.Frequency) time.Time {
	switch f {
	case model.FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case model.FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case model.FrequencyMonthly:
		return t.AddDate(0, 1, 0)
	case model.FrequencyQuarterly:
		return t.AddDate(0, 3, 0)
	case model.FrequencyYearly:
		return t.AddDate(1, 0, 0)
	default:
		return t
	}
}

// AllCompleted reports whether the schedule has tasks and all are done.
func AllCompleted(schedule *model.MaintenanceSchedule) bool {
	if schedule == nil || len(schedule.Tasks) == 0 {
		return false
	}
	for _, t := range schedule.Tasks {
		if !t.Completed {
			return false
		}
	}
	return true
}

// ToggleTask flips the completion of one task in place. When the toggle
// completes the last open task, the cycle closes: LastCompleted becomes now
// and NextDue is one frequency unit after now (not after the old NextDue).
// It reports whether the cycle closed.
func ToggleTask(schedule *model.MaintenanceSchedule, taskID string, now time.Time) (bool, error) {
	if schedule == nil {
		return false, fmt.Errorf("%w: no maintenance schedule", ErrTaskNotFound)
	}

	idx := -1
	for i := range schedule.Tasks {
		if schedule.Tasks[i].ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	task := &schedule.Tasks[idx]
	task.Completed = !task.Completed
	if task.Completed {
		completedAt := now
		task.CompletedAt = &completedAt
	} else {
		task.CompletedAt = nil
		return false, nil
	}

	if !AllCompleted(schedule) {
		return false, nil
	}
	lastCompleted := now
	schedule.LastCompleted = &lastCompleted
	schedule.NextDue = AddFrequency(now, schedule.Frequency)
	return true, nil
}

package model

import "time"

// Frequency is how often a maintenance cycle repeats.
type Frequency string

const (
	FrequencyDaily     Frequency = "Daily"
	FrequencyWeekly    Frequency = "Weekly"
	FrequencyMonthly   Frequency = "Monthly"
	FrequencyQuarterly Frequency = "Quarterly"
	FrequencyYearly    Frequency = "Yearly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// Priority ranks a maintenance task.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// MaintenanceSchedule is the recurring plan attached to one machine.
type MaintenanceSchedule struct {
	ID             string     `gorm:"size:64;primaryKey" json:"id"`
	MachineID      string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Frequency      Frequency  `gorm:"size:32;not null" json:"frequency"`
	NextDue        time.Time  `gorm:"not null;index" json:"nextDue"`
	LastCompleted  *time.Time `json:"lastCompleted,omitempty"`
	LastRemindedAt *time.Time `json:"-"`

	// Associations
	Tasks []MaintenanceTask `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"tasks"`
}

// MaintenanceTask is one step of a maintenance cycle.
type MaintenanceTask struct {
	ID                string     `gorm:"size:64;primaryKey" json:"id"`
	ScheduleID        string     `gorm:"size:64;index;not null" json:"-"`
	Position          int        `gorm:"not null" json:"-"`
	Name              string     `gorm:"size:256;not null" json:"name"`
	Description       string     `json:"description"`
	Priority          Priority   `gorm:"size:16;not null" json:"priority"`
	EstimatedDuration int        `json:"estimatedDuration"` // minutes
	Completed         bool       `gorm:"not null" json:"completed"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	Notes             string     `json:"notes,omitempty"`
}

// Clone returns a deep copy of s.
func (s *MaintenanceSchedule) Clone() *MaintenanceSchedule {
	if s == nil {
		return nil
	}
	out := *s
	out.LastCompleted = cloneTime(s.LastCompleted)
	out.LastRemindedAt = cloneTime(s.LastRemindedAt)
	if s.Tasks != nil {
		out.Tasks = make([]MaintenanceTask, len(s.Tasks))
		for i, t := range s.Tasks {
			t.CompletedAt = cloneTime(t.CompletedAt)
			out.Tasks[i] = t
		}
	}
	return &out
}

// HasTask reports whether a task with the given id exists in the schedule.
func (s *MaintenanceSchedule) HasTask(id string) bool {
	for _, t := range s.Tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

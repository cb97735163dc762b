package store

import (
	"errors"
	"time"

	"machine-fleet-backend/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict is returned on unique key violations.
	ErrConflict = errors.New("resource conflict / already exists")
)

// DueSchedule is a maintenance schedule that needs a reminder, together with
// the machine it belongs to.
type DueSchedule struct {
	MachineID   string
	MachineName string
	OwnerID     string
	Schedule    model.MaintenanceSchedule
}

// Window bounds a reminder sweep: schedules due before DueBefore that were
// last reminded before RemindedBefore (or never).
type Window struct {
	DueBefore      time.Time
	RemindedBefore time.Time
}

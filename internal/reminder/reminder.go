// Package reminder periodically looks for maintenance schedules that are
// overdue or due soon and pushes a reminder to the machine's subscribers.
package reminder

import (
	"context"
	"fmt"
	"log"
	"time"

	"machine-fleet-backend/config"
	"machine-fleet-backend/internal/maintenance"
	"machine-fleet-backend/internal/notification"
	"machine-fleet-backend/internal/store"
)

// RemindEvery is the minimum time between two reminders for one schedule.
const RemindEvery = 24 * time.Hour

// Source is the slice of the store the sweep needs.
type Source interface {
	DueSchedules(ctx context.Context, w store.Window) ([]store.DueSchedule, error)
	MarkReminded(ctx context.Context, scheduleIDs []string, at time.Time) error
}

// Dispatcher hands a job to the notification workers.
type Dispatcher interface {
	Dispatch(ctx context.Context, job notification.Job) error
}

// Service runs the reminder sweep.
type Service struct {
	cfg   config.ReminderConfig
	store Source
	pool  Dispatcher
	now   func() time.Time
}

// NewService creates a reminder service.
func NewService(cfg config.ReminderConfig, src Source, pool Dispatcher) *Service {
	return &Service{cfg: cfg, store: src, pool: pool, now: time.Now}
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Maintenance reminders are disabled. Not starting.")
		return
	}
	log.Println("Starting maintenance reminder service...")

	s.sweep(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reminder service shutting down.")
			return
		case <-timer.C:
			s.sweep(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	n, err := s.SweepOnce(ctx)
	if err != nil {
		log.Printf("Reminder sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Dispatched %d maintenance reminders", n)
	}
}

// SweepOnce dispatches reminders for every schedule in the window and
// returns how many were sent to the workers.
func (s *Service) SweepOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.store.DueSchedules(ctx, store.Window{
		DueBefore:      now.Add(maintenance.DueSoonDays * 24 * time.Hour),
		RemindedBefore: now.Add(-RemindEvery),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to load due schedules: %w", err)
	}

	var reminded []string
	for _, d := range due {
		status := maintenance.Resolve(&d.Schedule, now)
		if status == nil || status.State == maintenance.StateUpcoming {
			continue
		}
		job := notification.Job{
			MachineID:   d.MachineID,
			MachineName: d.MachineName,
			Message:     Message(d.MachineName, status),
		}
		if err := s.pool.Dispatch(ctx, job); err != nil {
			break
		}
		reminded = append(reminded, d.Schedule.ID)
	}

	if err := s.store.MarkReminded(ctx, reminded, now); err != nil {
		return len(reminded), err
	}
	return len(reminded), nil
}

// Message is the push text for a machine in the given status.
func Message(machineName string, status *maintenance.Status) string {
	switch status.State {
	case maintenance.StateOverdue:
		return fmt.Sprintf("%s maintenance is overdue", machineName)
	case maintenance.StateDueSoon:
		if status.DaysUntilDue <= 0 {
			return fmt.Sprintf("%s maintenance is due today", machineName)
		}
		return fmt.Sprintf("%s maintenance is due soon (%d days)", machineName, status.DaysUntilDue)
	default:
		return fmt.Sprintf("%s maintenance: %s", machineName, status.Label)
	}
}

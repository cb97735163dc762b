package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"machine-fleet-backend/config"
	"machine-fleet-backend/internal/maintenance"
	"machine-fleet-backend/internal/model"
	"machine-fleet-backend/internal/notification"
	"machine-fleet-backend/internal/store"
)

type fakeSource struct {
	due      []store.DueSchedule
	err      error
	window   store.Window
	reminded []string
	at       time.Time
}

func (f *fakeSource) DueSchedules(_ context.Context, w store.Window) ([]store.DueSchedule, error) {
	f.window = w
	return f.due, f.err
}

func (f *fakeSource) MarkReminded(_ context.Context, ids []string, at time.Time) error {
	f.reminded = ids
	f.at = at
	return nil
}

type fakePool struct {
	jobs []notification.Job
	err  error
}

func (f *fakePool) Dispatch(_ context.Context, job notification.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func TestSweepOnce(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{due: []store.DueSchedule{
		{MachineID: "m-1", MachineName: "Arm A", Schedule: model.MaintenanceSchedule{ID: "s-1", NextDue: now.Add(-48 * time.Hour)}},
		{MachineID: "m-2", MachineName: "Rover", Schedule: model.MaintenanceSchedule{ID: "s-2", NextDue: now.Add(72 * time.Hour)}},
		{MachineID: "m-3", MachineName: "Far", Schedule: model.MaintenanceSchedule{ID: "s-3", NextDue: now.Add(30 * 24 * time.Hour)}},
	}}
	pool := &fakePool{}
	svc := NewService(config.ReminderConfig{Enabled: true}, src, pool)
	svc.now = func() time.Time { return now }

	n, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, now.Add(7*24*time.Hour), src.window.DueBefore)
	assert.Equal(t, now.Add(-24*time.Hour), src.window.RemindedBefore)

	require.Len(t, pool.jobs, 2)
	assert.Equal(t, "Arm A maintenance is overdue", pool.jobs[0].Message)
	assert.Equal(t, "Rover maintenance is due soon (3 days)", pool.jobs[1].Message)
	assert.Equal(t, []string{"s-1", "s-2"}, src.reminded)
	assert.Equal(t, now, src.at)
}

func TestSweepOnce_Errors(t *testing.T) {
	t.Run("store failure", func(t *testing.T) {
		svc := NewService(config.ReminderConfig{}, &fakeSource{err: errors.New("boom")}, &fakePool{})
		_, err := svc.SweepOnce(context.Background())
		assert.Error(t, err)
	})

	t.Run("pool closed marks nothing", func(t *testing.T) {
		src := &fakeSource{due: []store.DueSchedule{
			{MachineID: "m-1", Schedule: model.MaintenanceSchedule{ID: "s-1", NextDue: time.Now().Add(-time.Hour * 48)}},
		}}
		svc := NewService(config.ReminderConfig{}, src, &fakePool{err: notification.ErrPoolClosed})
		n, err := svc.SweepOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, src.reminded)
	})
}

func TestMessage(t *testing.T) {
	tests := []struct {
		status maintenance.Status
		want   string
	}{
		{maintenance.Status{State: maintenance.StateOverdue, DaysUntilDue: -2}, "Arm maintenance is overdue"},
		{maintenance.Status{State: maintenance.StateDueSoon, DaysUntilDue: 0}, "Arm maintenance is due today"},
		{maintenance.Status{State: maintenance.StateDueSoon, DaysUntilDue: 5}, "Arm maintenance is due soon (5 days)"},
		{maintenance.Status{State: maintenance.StateUpcoming, Label: "Due in 9 days"}, "Arm maintenance: Due in 9 days"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			status := tt.status
			assert.Equal(t, tt.want, Message("Arm", &status))
		})
	}
}

func TestRun_Disabled(t *testing.T) {
	src := &fakeSource{}
	svc := NewService(config.ReminderConfig{Enabled: false}, src, &fakePool{})
	svc.Run(context.Background())
	assert.True(t, src.window.DueBefore.IsZero())
}

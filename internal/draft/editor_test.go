package draft

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"machine-fleet-backend/internal/model"
	"machine-fleet-backend/internal/parse"
)

// fakeSaver records saved machines and can be told to fail or block.
type fakeSaver struct {
	mu      sync.Mutex
	saved   []*model.Machine
	err     error
	release chan struct{}
	entered chan struct{}
}

func (f *fakeSaver) SaveMachine(ctx context.Context, m *model.Machine) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	m.UpdatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f.saved = append(f.saved, m)
	return nil
}

func (f *fakeSaver) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func sampleMachine() *model.Machine {
	lastCompleted := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	return &model.Machine{
		ID:          "m-1",
		OwnerID:     "user-1",
		Name:        "Welder",
		Description: "Spot welding cell",
		Type:        model.MachineTypeIndustrialRobot,
		Status:      model.MachineStatusActive,
		Components: []model.Component{
			{
				ID:             "c-1",
				Name:           "Servo",
				Category:       model.CategoryDrive,
				Specifications: datatypes.JSONMap{"weight": "2kg", "extra": map[string]interface{}{"k": "v"}},
				RiskFactors:    []model.RiskFactor{{ID: "r-1", ComponentID: "c-1", Severity: 3, Probability: 2}},
			},
		},
		MaintenanceSchedule: &model.MaintenanceSchedule{
			ID:            "s-1",
			MachineID:     "m-1",
			Frequency:     model.FrequencyMonthly,
			NextDue:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			LastCompleted: &lastCompleted,
			Tasks: []model.MaintenanceTask{
				{ID: "t-1", Name: "Grease", Priority: model.PriorityLow},
				{ID: "t-2", Name: "Inspect", Priority: model.PriorityHigh},
			},
		},
	}
}

func TestEditor_BeginThenCancelRestoresSaved(t *testing.T) {
	original := sampleMachine()
	e := NewEditor(original, &fakeSaver{})
	require.NoError(t, e.Begin())
	assert.Equal(t, StateEditing, e.State())

	name := "Renamed"
	require.NoError(t, e.Update(Fields{Name: &name}))
	require.NoError(t, e.RemoveComponent("c-1"))
	_, err := e.ToggleTask("t-1")
	require.NoError(t, err)
	require.NoError(t, e.SetFrequency(model.FrequencyDaily))

	require.NoError(t, e.Cancel())
	assert.Equal(t, StateViewing, e.State())
	assert.Equal(t, sampleMachine(), e.Current())
	assert.Equal(t, sampleMachine(), e.Saved())
}

func TestEditor_DraftDoesNotAliasSaved(t *testing.T) {
	original := sampleMachine()
	e := NewEditor(original, &fakeSaver{})
	require.NoError(t, e.Begin())

	// Mutating the caller's copy must not leak into the editor either.
	original.Components[0].Specifications["weight"] = "9kg"

	e.draft.Components[0].Specifications["extra"].(map[string]interface{})["k"] = "changed"
	e.draft.Components[0].RiskFactors[0].Severity = 5
	*e.draft.MaintenanceSchedule.LastCompleted = time.Time{}
	e.draft.MaintenanceSchedule.Tasks[0].Name = "changed"

	assert.Equal(t, sampleMachine(), e.Saved())
}

func TestEditor_MutationsRequireEditing(t *testing.T) {
	e := NewEditor(sampleMachine(), &fakeSaver{})
	status := model.MachineStatusError

	assert.ErrorIs(t, e.Update(Fields{Status: &status}), ErrNotEditing)
	assert.ErrorIs(t, e.RemoveComponent("c-1"), ErrNotEditing)
	_, err := e.ToggleTask("t-1")
	assert.ErrorIs(t, err, ErrNotEditing)
	_, err = e.Save(context.Background())
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestEditor_SaveEmptyNameFailsValidation(t *testing.T) {
	saver := &fakeSaver{}
	e := NewEditor(sampleMachine(), saver)
	require.NoError(t, e.Begin())

	empty := ""
	require.NoError(t, e.Update(Fields{Name: &empty}))

	_, err := e.Save(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
	assert.Equal(t, StateEditing, e.State())
	assert.Equal(t, 0, saver.calls(), "validation must fail before any remote call")
	assert.Equal(t, "", e.Current().Name)
}

func TestEditor_SaveEmptyDescriptionFailsValidation(t *testing.T) {
	e := NewEditor(sampleMachine(), &fakeSaver{})
	require.NoError(t, e.Begin())
	blank := "   "
	require.NoError(t, e.Update(Fields{Description: &blank}))

	_, err := e.Save(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "description", verr.Field)
}

func TestEditor_SavePromotesDraft(t *testing.T) {
	saver := &fakeSaver{}
	e := NewEditor(sampleMachine(), saver)
	require.NoError(t, e.Begin())
	require.NoError(t, e.SetStatus(model.MachineStatusMaintenance))

	saved, err := e.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateViewing, e.State())
	assert.Equal(t, model.MachineStatusMaintenance, saved.Status)
	assert.Equal(t, model.MachineStatusMaintenance, e.Saved().Status)
	assert.Equal(t, 2025, e.Saved().UpdatedAt.Year(), "values set by the saver are kept")
	assert.Equal(t, 1, saver.calls())
	assert.NoError(t, e.Err())
}

func TestEditor_SaveFailureKeepsDraft(t *testing.T) {
	saver := &fakeSaver{err: errors.New("connection refused")}
	e := NewEditor(sampleMachine(), saver)
	require.NoError(t, e.Begin())
	name := "Retry me"
	require.NoError(t, e.Update(Fields{Name: &name}))

	_, err := e.Save(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateEditing, e.State())
	assert.Equal(t, "Retry me", e.Current().Name)
	assert.Equal(t, "Welder", e.Saved().Name)
	assert.EqualError(t, e.Err(), "connection refused")
	assert.Equal(t, "connection refused", e.Snapshot().Error)

	// Retry succeeds once the store recovers.
	saver.mu.Lock()
	saver.err = nil
	saver.mu.Unlock()
	_, err = e.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Retry me", e.Saved().Name)
}

func TestEditor_BusyWhileSaving(t *testing.T) {
	saver := &fakeSaver{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	e := NewEditor(sampleMachine(), saver)
	require.NoError(t, e.Begin())

	done := make(chan error, 1)
	go func() {
		_, err := e.Save(context.Background())
		done <- err
	}()
	<-saver.entered

	assert.Equal(t, StateSaving, e.State())
	status := model.MachineStatusOffline
	assert.ErrorIs(t, e.Update(Fields{Status: &status}), ErrBusy)
	_, err := e.Save(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, e.Cancel(), ErrBusy)
	assert.ErrorIs(t, e.ApplyPatch(Patch{}), ErrBusy)

	close(saver.release)
	require.NoError(t, <-done)
	assert.Equal(t, StateViewing, e.State())
}

func TestCreateEditor_RequiresComponent(t *testing.T) {
	saver := &fakeSaver{}
	e := NewCreateEditor(&model.Machine{ID: "new", Name: "Drone", Description: "Survey drone"}, saver)
	assert.Equal(t, StateEditing, e.State())

	_, err := e.Save(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "components", verr.Field)
	assert.Equal(t, 0, saver.calls())

	require.NoError(t, e.AddComponent(model.Component{Name: "Rotor", Category: model.CategoryDrive}))
	saved, err := e.Save(context.Background())
	require.NoError(t, err)
	require.Len(t, saved.Components, 1)
	assert.NotEmpty(t, saved.Components[0].ID)
	assert.Equal(t, StateViewing, e.State())
	assert.False(t, e.Snapshot().Creating)
}

func TestCreateEditor_CancelStaysEditing(t *testing.T) {
	e := NewCreateEditor(nil, &fakeSaver{})
	name := "Temp"
	require.NoError(t, e.Update(Fields{Name: &name}))
	require.NoError(t, e.Cancel())
	assert.Equal(t, StateEditing, e.State())
	assert.Equal(t, "", e.Current().Name)
}

func TestEditor_AddAndRemoveComponent(t *testing.T) {
	e := NewEditor(sampleMachine(), &fakeSaver{})
	require.NoError(t, e.Begin())

	err := e.AddComponent(model.Component{ID: "c-1", Category: model.CategoryDrive})
	assert.ErrorIs(t, err, ErrDuplicateComponent)

	var verr *ValidationError
	assert.ErrorAs(t, e.AddComponent(model.Component{Category: "Hydraulics"}), &verr)

	require.NoError(t, e.AddComponent(model.Component{
		ID:          "c-2",
		Category:    model.CategorySensors,
		RiskFactors: []model.RiskFactor{{Name: "Glare", Severity: 1, Probability: 2}},
	}))
	current := e.Current()
	require.Len(t, current.Components, 2)
	assert.NotEmpty(t, current.Components[1].RiskFactors[0].ID)
	assert.Equal(t, "c-2", current.Components[1].RiskFactors[0].ComponentID)

	assert.ErrorIs(t, e.RemoveComponent("nope"), ErrComponentNotFound)
	require.NoError(t, e.RemoveComponent("c-1"))
	assert.Len(t, e.Current().Components, 1)
	assert.Len(t, e.Saved().Components, 1)
}

func TestEditor_ToggleLastTaskRollsSchedule(t *testing.T) {
	now := time.Date(2025, 7, 20, 10, 0, 0, 0, time.UTC)
	e := NewEditor(sampleMachine(), &fakeSaver{})
	e.now = func() time.Time { return now }
	require.NoError(t, e.Begin())

	closed, err := e.ToggleTask("t-1")
	require.NoError(t, err)
	assert.False(t, closed)

	closed, err = e.ToggleTask("t-2")
	require.NoError(t, err)
	assert.True(t, closed)

	s := e.Current().MaintenanceSchedule
	assert.Equal(t, now, *s.LastCompleted)
	assert.Equal(t, time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC), s.NextDue)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), e.Saved().MaintenanceSchedule.NextDue)
}

func TestEditor_ScheduleMutations(t *testing.T) {
	m := sampleMachine()
	m.MaintenanceSchedule = nil
	e := NewEditor(m, &fakeSaver{})
	require.NoError(t, e.Begin())

	assert.ErrorIs(t, e.SetFrequency(model.FrequencyWeekly), ErrNoSchedule)
	assert.ErrorIs(t, e.AddTask(model.MaintenanceTask{Name: "Oil"}), ErrNoSchedule)

	var verr *ValidationError
	assert.ErrorAs(t, e.SetSchedule("Hourly", nil), &verr)

	due := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, e.SetSchedule(model.FrequencyQuarterly, &due))
	require.NoError(t, e.AddTask(model.MaintenanceTask{Name: "Oil"}))

	s := e.Current().MaintenanceSchedule
	require.NotNil(t, s)
	assert.Equal(t, model.FrequencyQuarterly, s.Frequency)
	assert.Equal(t, due, s.NextDue)
	require.Len(t, s.Tasks, 1)
	assert.Equal(t, model.PriorityMedium, s.Tasks[0].Priority)
	assert.NotEmpty(t, s.Tasks[0].ID)
}

func TestEditor_ApplyPatch(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	e := NewEditor(sampleMachine(), &fakeSaver{})
	e.now = func() time.Time { return now }
	require.Equal(t, StateViewing, e.State())

	name := "Welder Mk2"
	status := model.MachineStatusMaintenance
	empty := ""
	patch := Patch{
		Name:        &name,
		Description: &empty,
		Status:      &status,
		Components: []model.Component{
			{ID: "c-1", Name: "Duplicate servo", Category: model.CategoryDrive},
			{ID: "c-9", Name: "Lidar", Category: model.CategorySensors, OwnerID: "user-2",
				RiskFactors: []model.RiskFactor{{ID: "r-foreign", Severity: 2, Probability: 2}}},
			{ID: "c-10", Name: "Toast rack", Category: model.Category("Toaster")},
		},
		MaintenanceSchedule: &SchedulePatch{
			Tasks: []model.MaintenanceTask{
				{ID: "t-1", Name: "Duplicate grease"},
				{ID: "t-3", Name: "Calibrate"},
			},
		},
	}
	require.NoError(t, e.ApplyPatch(patch))
	assert.Equal(t, StateEditing, e.State(), "a patch implies intent to edit")

	current := e.Current()
	assert.Equal(t, "Welder Mk2", current.Name)
	assert.Equal(t, "Spot welding cell", current.Description, "empty scalars do not overwrite")
	assert.Equal(t, model.MachineStatusMaintenance, current.Status)
	require.Len(t, current.Components, 2)
	assert.Equal(t, "Servo", current.Components[0].Name)
	assert.Equal(t, "c-9", current.Components[1].ID)
	assert.Equal(t, "user-1", current.Components[1].OwnerID, "suggested components belong to the draft owner")
	require.Len(t, current.Components[1].RiskFactors, 1)
	assert.NotEqual(t, "r-foreign", current.Components[1].RiskFactors[0].ID)
	assert.Equal(t, "c-9", current.Components[1].RiskFactors[0].ComponentID)
	assert.False(t, current.HasComponent("c-10"), "unknown categories are dropped")
	require.Len(t, current.MaintenanceSchedule.Tasks, 3)
	assert.Equal(t, "Grease", current.MaintenanceSchedule.Tasks[0].Name)
	assert.Equal(t, "t-3", current.MaintenanceSchedule.Tasks[2].ID)
	assert.Equal(t, model.FrequencyMonthly, current.MaintenanceSchedule.Frequency)

	// Applying the same patch again adds nothing.
	require.NoError(t, e.ApplyPatch(patch))
	current = e.Current()
	assert.Len(t, current.Components, 2)
	assert.Len(t, current.MaintenanceSchedule.Tasks, 3)

	assert.Equal(t, "Welder", e.Saved().Name)
}

func TestEditor_ApplyPatchCreatesSchedule(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	m := sampleMachine()
	m.MaintenanceSchedule = nil
	e := NewEditor(m, &fakeSaver{})
	e.now = func() time.Time { return now }

	require.NoError(t, e.ApplyPatch(Patch{MaintenanceSchedule: &SchedulePatch{
		Frequency: model.FrequencyWeekly,
		Tasks:     []model.MaintenanceTask{{Name: "Check belts"}},
	}}))
	s := e.Current().MaintenanceSchedule
	require.NotNil(t, s)
	assert.Equal(t, model.FrequencyWeekly, s.Frequency)
	assert.Equal(t, now.AddDate(0, 0, 7), s.NextDue)
	require.Len(t, s.Tasks, 1)
	assert.Equal(t, "m-1", s.MachineID)

	due := parse.FlexTime{Time: now.AddDate(0, 0, 2), Valid: true}
	require.NoError(t, e.ApplyPatch(Patch{MaintenanceSchedule: &SchedulePatch{NextDue: due}}))
	assert.Equal(t, now.AddDate(0, 0, 2), e.Current().MaintenanceSchedule.NextDue)
	assert.Equal(t, model.FrequencyWeekly, e.Current().MaintenanceSchedule.Frequency)
}

func TestNewComponent_ReplacesIdentity(t *testing.T) {
	in := model.Component{
		ID:          "c-1",
		OwnerID:     "user-2",
		Name:        "Servo",
		Category:    model.CategoryDrive,
		RiskFactors: []model.RiskFactor{{ID: "r-1", ComponentID: "c-1", Severity: 3, Probability: 2}},
	}
	out := NewComponent(in, "user-1")

	assert.NotEmpty(t, out.ID)
	assert.NotEqual(t, "c-1", out.ID)
	assert.Equal(t, "user-1", out.OwnerID)
	assert.Equal(t, "Servo", out.Name)
	require.Len(t, out.RiskFactors, 1)
	assert.NotEqual(t, "r-1", out.RiskFactors[0].ID)
	assert.Equal(t, out.ID, out.RiskFactors[0].ComponentID)
	assert.Equal(t, "r-1", in.RiskFactors[0].ID, "input is not modified")
}

func TestPatch_Empty(t *testing.T) {
	var p *Patch
	assert.True(t, p.Empty())
	assert.True(t, (&Patch{}).Empty())
	name := "x"
	assert.False(t, (&Patch{Name: &name}).Empty())
}

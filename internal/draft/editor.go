package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"machine-fleet-backend/internal/maintenance"
	"machine-fleet-backend/internal/model"
)

// State is the phase of an editing session.
type State string

const (
	StateViewing State = "viewing"
	StateEditing State = "editing"
	StateSaving  State = "saving"
)

var (
	// ErrNotEditing is returned by mutations while the editor is viewing.
	ErrNotEditing = errors.New("editor is not in editing state")
	// ErrBusy is returned while a save is in flight.
	ErrBusy = errors.New("a save is already in progress")
	// ErrComponentNotFound is returned when removing an unknown component.
	ErrComponentNotFound = errors.New("component not found in draft")
	// ErrDuplicateComponent is returned when adding a component twice.
	ErrDuplicateComponent = errors.New("component already attached to draft")
	// ErrNoSchedule is returned by schedule mutations on a machine without one.
	ErrNoSchedule = errors.New("machine has no maintenance schedule")
)

// ValidationError reports a missing or invalid field. It is raised before
// any remote call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Saver persists a complete machine record.
type Saver interface {
	SaveMachine(ctx context.Context, m *model.Machine) error
}

// Editor keeps a saved record and an independent draft copy. Mutations only
// ever touch the draft; the saved record changes only after a successful Save.
type Editor struct {
	mu       sync.Mutex
	saver    Saver
	state    State
	creating bool
	saved    *model.Machine
	draft    *model.Machine
	lastErr  error
	now      func() time.Time
}

// NewEditor creates an editor in the viewing state for an existing machine.
func NewEditor(saved *model.Machine, saver Saver) *Editor {
	return &Editor{
		saver: saver,
		state: StateViewing,
		saved: saved.Clone(),
		draft: saved.Clone(),
		now:   time.Now,
	}
}

// NewCreateEditor creates an editor for a machine that does not exist yet.
// It starts in the editing state and Cancel resets the draft to template.
func NewCreateEditor(template *model.Machine, saver Saver) *Editor {
	if template == nil {
		template = &model.Machine{}
	}
	e := NewEditor(template, saver)
	e.state = StateEditing
	e.creating = true
	return e
}

// Snapshot is a consistent read of the editor.
type Snapshot struct {
	State    State          `json:"state"`
	Creating bool           `json:"creating"`
	Machine  *model.Machine `json:"machine"`
	Saved    *model.Machine `json:"saved"`
	Error    string         `json:"error,omitempty"`
}

// Snapshot returns copies of both records. Machine is the draft while
// editing or saving, and the saved record while viewing.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		State:    e.state,
		Creating: e.creating,
		Machine:  e.currentLocked(),
		Saved:    e.saved.Clone(),
	}
	if e.lastErr != nil {
		s.Error = e.lastErr.Error()
	}
	return s
}

// State returns the current phase.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns a copy of the record that should be displayed.
func (e *Editor) Current() *model.Machine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentLocked()
}

// Saved returns a copy of the last saved record.
func (e *Editor) Saved() *model.Machine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saved.Clone()
}

// Err returns the error of the last failed save, if any.
func (e *Editor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Editor) currentLocked() *model.Machine {
	if e.state == StateViewing {
		return e.saved.Clone()
	}
	return e.draft.Clone()
}

// Begin enters the editing state with a fresh clone of the saved record.
// Calling Begin while already editing keeps the current draft.
func (e *Editor) Begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.beginLocked()
}

func (e *Editor) beginLocked() error {
	switch e.state {
	case StateSaving:
		return ErrBusy
	case StateEditing:
		return nil
	}
	e.draft = e.saved.Clone()
	e.state = StateEditing
	e.lastErr = nil
	return nil
}

// Cancel discards the draft. An existing machine returns to viewing; a
// creation editor stays in editing with the draft reset to its template.
func (e *Editor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateSaving {
		return ErrBusy
	}
	e.draft = e.saved.Clone()
	e.lastErr = nil
	if e.creating {
		e.state = StateEditing
	} else {
		e.state = StateViewing
	}
	return nil
}

// Save validates the draft and hands a copy of it to the saver. On success
// the draft becomes the saved record and the editor returns to viewing. On
// failure the editor stays in editing with the draft untouched.
func (e *Editor) Save(ctx context.Context) (*model.Machine, error) {
	e.mu.Lock()
	switch e.state {
	case StateSaving:
		e.mu.Unlock()
		return nil, ErrBusy
	case StateViewing:
		e.mu.Unlock()
		return nil, ErrNotEditing
	}
	if err := e.validateLocked(); err != nil {
		e.lastErr = err
		e.mu.Unlock()
		return nil, err
	}
	e.state = StateSaving
	pending := e.draft.Clone()
	e.mu.Unlock()

	err := e.saver.SaveMachine(ctx, pending)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = StateEditing
		e.lastErr = err
		return nil, err
	}
	e.saved = pending
	e.draft = pending.Clone()
	e.state = StateViewing
	e.creating = false
	e.lastErr = nil
	return e.saved.Clone(), nil
}

func (e *Editor) validateLocked() error {
	if strings.TrimSpace(e.draft.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(e.draft.Description) == "" {
		return &ValidationError{Field: "description", Message: "description is required"}
	}
	if e.creating && len(e.draft.Components) == 0 {
		return &ValidationError{Field: "components", Message: "at least one component is required"}
	}
	if e.draft.Type != "" && !e.draft.Type.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown machine type %q", e.draft.Type)}
	}
	if e.draft.Status != "" && !e.draft.Status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown machine status %q", e.draft.Status)}
	}
	return nil
}

// mutate runs fn against the draft while editing.
func (e *Editor) mutate(fn func(d *model.Machine) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateSaving:
		return ErrBusy
	case StateViewing:
		return ErrNotEditing
	}
	return fn(e.draft)
}

// Fields holds optional scalar updates; nil pointers are left alone.
type Fields struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	Type        *model.MachineType   `json:"type"`
	Status      *model.MachineStatus `json:"status"`
}

// Update overwrites the scalar fields present in f.
func (e *Editor) Update(f Fields) error {
	if f.Type != nil && !f.Type.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown machine type %q", *f.Type)}
	}
	if f.Status != nil && !f.Status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown machine status %q", *f.Status)}
	}
	return e.mutate(func(d *model.Machine) error {
		if f.Name != nil {
			d.Name = *f.Name
		}
		if f.Description != nil {
			d.Description = *f.Description
		}
		if f.Type != nil {
			d.Type = *f.Type
		}
		if f.Status != nil {
			d.Status = *f.Status
		}
		return nil
	})
}

// SetStatus changes the draft's operational status.
func (e *Editor) SetStatus(s model.MachineStatus) error {
	return e.Update(Fields{Status: &s})
}

func (e *Editor) SetName(name string) error {
	return e.Update(Fields{Name: &name})
}

func (e *Editor) SetDescription(description string) error {
	return e.Update(Fields{Description: &description})
}

func (e *Editor) SetType(t model.MachineType) error {
	return e.Update(Fields{Type: &t})
}

// AddComponent appends c to the draft, assigning ids where missing.
func (e *Editor) AddComponent(c model.Component) error {
	if !c.Category.Valid() {
		return &ValidationError{Field: "category", Message: fmt.Sprintf("unknown component category %q", c.Category)}
	}
	return e.mutate(func(d *model.Machine) error {
		if c.ID != "" && d.HasComponent(c.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateComponent, c.ID)
		}
		d.Components = append(d.Components, prepareComponent(c))
		return nil
	})
}

// RemoveComponent detaches the component with the given id from the draft.
func (e *Editor) RemoveComponent(id string) error {
	return e.mutate(func(d *model.Machine) error {
		for i, c := range d.Components {
			if c.ID == id {
				d.Components = append(d.Components[:i:i], d.Components[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrComponentNotFound, id)
	})
}

// ToggleTask flips a task's completion, closing the cycle when it was the
// last open task. It reports whether the cycle closed.
func (e *Editor) ToggleTask(taskID string) (bool, error) {
	var closed bool
	err := e.mutate(func(d *model.Machine) error {
		if d.MaintenanceSchedule == nil {
			return ErrNoSchedule
		}
		var err error
		closed, err = maintenance.ToggleTask(d.MaintenanceSchedule, taskID, e.now().UTC())
		return err
	})
	return closed, err
}

// SetFrequency changes the recurrence of the draft's schedule.
func (e *Editor) SetFrequency(f model.Frequency) error {
	if !f.Valid() {
		return &ValidationError{Field: "frequency", Message: fmt.Sprintf("unknown frequency %q", f)}
	}
	return e.mutate(func(d *model.Machine) error {
		if d.MaintenanceSchedule == nil {
			return ErrNoSchedule
		}
		d.MaintenanceSchedule.Frequency = f
		return nil
	})
}

// SetSchedule creates the draft's schedule or updates its frequency and due
// date, keeping existing tasks. A nil nextDue defaults to one frequency unit
// from now for a new schedule.
func (e *Editor) SetSchedule(f model.Frequency, nextDue *time.Time) error {
	if !f.Valid() {
		return &ValidationError{Field: "frequency", Message: fmt.Sprintf("unknown frequency %q", f)}
	}
	return e.mutate(func(d *model.Machine) error {
		if d.MaintenanceSchedule == nil {
			d.MaintenanceSchedule = &model.MaintenanceSchedule{
				ID:        uuid.NewString(),
				MachineID: d.ID,
				NextDue:   maintenance.AddFrequency(e.now().UTC(), f),
				Tasks:     []model.MaintenanceTask{},
			}
		}
		d.MaintenanceSchedule.Frequency = f
		if nextDue != nil {
			d.MaintenanceSchedule.NextDue = *nextDue
		}
		return nil
	})
}

// AddTask appends a task to the draft's schedule.
func (e *Editor) AddTask(t model.MaintenanceTask) error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Message: "task name is required"}
	}
	return e.mutate(func(d *model.Machine) error {
		if d.MaintenanceSchedule == nil {
			return ErrNoSchedule
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if d.MaintenanceSchedule.HasTask(t.ID) {
			return nil
		}
		d.MaintenanceSchedule.Tasks = append(d.MaintenanceSchedule.Tasks, prepareTask(t))
		return nil
	})
}

// NewComponent copies c as a component that is not in the owner's library
// yet: client-supplied ids are replaced and ownerID becomes its owner.
func NewComponent(c model.Component, ownerID string) model.Component {
	c = c.Clone()
	c.ID = ""
	c.OwnerID = ownerID
	for i := range c.RiskFactors {
		c.RiskFactors[i].ID = ""
	}
	return prepareComponent(c)
}

func prepareComponent(c model.Component) model.Component {
	c = c.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	for i := range c.RiskFactors {
		if c.RiskFactors[i].ID == "" {
			c.RiskFactors[i].ID = uuid.NewString()
		}
		c.RiskFactors[i].ComponentID = c.ID
	}
	return c
}

func prepareTask(t model.MaintenanceTask) model.MaintenanceTask {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}

package draft

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"machine-fleet-backend/internal/maintenance"
	"machine-fleet-backend/internal/model"
	"machine-fleet-backend/internal/parse"
)

// Patch is a partial machine suggested by the advisory assistant.
type Patch struct {
	Name                *string              `json:"name,omitempty"`
	Description         *string              `json:"description,omitempty"`
	Type                *model.MachineType   `json:"type,omitempty"`
	Status              *model.MachineStatus `json:"status,omitempty"`
	Components          []model.Component    `json:"components,omitempty"`
	MaintenanceSchedule *SchedulePatch       `json:"maintenanceSchedule,omitempty"`
}

// SchedulePatch is the schedule part of a Patch.
type SchedulePatch struct {
	Frequency model.Frequency         `json:"frequency,omitempty"`
	NextDue   parse.FlexTime          `json:"nextDue"`
	Tasks     []model.MaintenanceTask `json:"tasks,omitempty"`
}

// Empty reports whether the patch carries no changes.
func (p *Patch) Empty() bool {
	return p == nil || (p.Name == nil && p.Description == nil && p.Type == nil && p.Status == nil &&
		len(p.Components) == 0 && p.MaintenanceSchedule == nil)
}

// ApplyPatch merges p into the draft, entering the editing state first when
// the editor is viewing.
func (e *Editor) ApplyPatch(p Patch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.beginLocked(); err != nil {
		return err
	}
	mergePatch(e.draft, p, e.now().UTC())
	return nil
}

func mergePatch(d *model.Machine, p Patch, now time.Time) {
	if p.Name != nil && strings.TrimSpace(*p.Name) != "" {
		d.Name = *p.Name
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) != "" {
		d.Description = *p.Description
	}
	if p.Type != nil && p.Type.Valid() {
		d.Type = *p.Type
	}
	if p.Status != nil && p.Status.Valid() {
		d.Status = *p.Status
	}

	for _, c := range p.Components {
		if !c.Category.Valid() {
			continue
		}
		if c.ID != "" && d.HasComponent(c.ID) {
			continue
		}
		// Suggested components always belong to the draft's owner.
		c = c.Clone()
		c.OwnerID = d.OwnerID
		for i := range c.RiskFactors {
			c.RiskFactors[i].ID = ""
		}
		d.Components = append(d.Components, prepareComponent(c))
	}

	if p.MaintenanceSchedule != nil {
		mergeSchedule(d, *p.MaintenanceSchedule, now)
	}
}

func mergeSchedule(d *model.Machine, sp SchedulePatch, now time.Time) {
	s := d.MaintenanceSchedule
	if s == nil {
		freq := sp.Frequency
		if !freq.Valid() {
			freq = model.FrequencyMonthly
		}
		s = &model.MaintenanceSchedule{
			ID:        uuid.NewString(),
			MachineID: d.ID,
			Frequency: freq,
			NextDue:   maintenance.AddFrequency(now, freq),
			Tasks:     []model.MaintenanceTask{},
		}
		d.MaintenanceSchedule = s
	} else if sp.Frequency.Valid() {
		s.Frequency = sp.Frequency
	}
	if sp.NextDue.Valid {
		s.NextDue = sp.NextDue.Time
	}

	for _, t := range sp.Tasks {
		if t.ID != "" && s.HasTask(t.ID) {
			continue
		}
		s.Tasks = append(s.Tasks, prepareTask(t))
	}
}

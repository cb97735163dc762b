package model

import "time"

// MachineType classifies a tracked robot.
type MachineType string

const (
	MachineTypeIndustrialRobot    MachineType = "Industrial Robot"
	MachineTypeCollaborativeRobot MachineType = "Collaborative Robot"
	MachineTypeMobileRobot        MachineType = "Mobile Robot"
	MachineTypeAutonomousVehicle  MachineType = "Autonomous Vehicle"
	MachineTypeDrone              MachineType = "Drone"
	MachineTypeCustom             MachineType = "Custom"
)

// MachineStatus is the operational state shown on the dashboard.
type MachineStatus string

const (
	MachineStatusActive      MachineStatus = "Active"
	MachineStatusInactive    MachineStatus = "Inactive"
	MachineStatusMaintenance MachineStatus = "Maintenance"
	MachineStatusError       MachineStatus = "Error"
	MachineStatusOffline     MachineStatus = "Offline"
)

// Valid reports whether t is one of the known machine types.
func (t MachineType) Valid() bool {
	switch t {
	case MachineTypeIndustrialRobot, MachineTypeCollaborativeRobot, MachineTypeMobileRobot,
		MachineTypeAutonomousVehicle, MachineTypeDrone, MachineTypeCustom:
		return true
	}
	return false
}

// Valid reports whether s is one of the known machine statuses.
func (s MachineStatus) Valid() bool {
	switch s {
	case MachineStatusActive, MachineStatusInactive, MachineStatusMaintenance,
		MachineStatusError, MachineStatusOffline:
		return true
	}
	return false
}

// Machine represents a tracked robotic asset and its ordered component list.
type Machine struct {
	ID          string        `gorm:"size:64;primaryKey" json:"id"`
	OwnerID     string        `gorm:"size:64;index;not null" json:"ownerId"`
	Name        string        `gorm:"size:256;not null" json:"name"`
	Description string        `gorm:"not null" json:"description"`
	Type        MachineType   `gorm:"size:64;not null" json:"type"`
	Status      MachineStatus `gorm:"size:32;not null" json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`

	// Loaded and persisted by the store, not by gorm associations.
	Components          []Component          `gorm:"-" json:"components"`
	MaintenanceSchedule *MaintenanceSchedule `gorm:"-" json:"maintenanceSchedule,omitempty"`
}

// MachineComponent is the join row that keeps a machine's components ordered.
type MachineComponent struct {
	MachineID   string `gorm:"size:64;primaryKey"`
	ComponentID string `gorm:"size:64;primaryKey;index"`
	Position    int    `gorm:"not null"`
}

// Clone returns a deep copy of m. The copy shares no slices, maps or
// pointers with m.
func (m *Machine) Clone() *Machine {
	if m == nil {
		return nil
	}
	out := *m
	if m.Components != nil {
		out.Components = make([]Component, len(m.Components))
		for i := range m.Components {
			out.Components[i] = m.Components[i].Clone()
		}
	}
	out.MaintenanceSchedule = m.MaintenanceSchedule.Clone()
	return &out
}

// HasComponent reports whether a component with the given id is attached.
func (m *Machine) HasComponent(id string) bool {
	for _, c := range m.Components {
		if c.ID == id {
			return true
		}
	}
	return false
}

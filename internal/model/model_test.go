package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestMachineClone_IsDeep(t *testing.T) {
	done := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	orig := &Machine{
		ID:   "m1",
		Name: "Arm",
		Components: []Component{{
			ID:             "c1",
			Specifications: datatypes.JSONMap{"weight": 500.0, "limits": map[string]interface{}{"max": 3.0}},
			RiskFactors:    []RiskFactor{{ID: "r1", Severity: 2, Probability: 3}},
		}},
		MaintenanceSchedule: &MaintenanceSchedule{
			ID:            "s1",
			LastCompleted: &done,
			Tasks:         []MaintenanceTask{{ID: "t1", CompletedAt: &done}},
		},
	}

	cp := orig.Clone()
	require.NotNil(t, cp)

	cp.Name = "Changed"
	cp.Components[0].Specifications["weight"] = 1.0
	cp.Components[0].Specifications["limits"].(map[string]interface{})["max"] = 9.0
	cp.Components[0].RiskFactors[0].Severity = 5
	*cp.MaintenanceSchedule.LastCompleted = done.Add(time.Hour)
	cp.MaintenanceSchedule.Tasks[0].Completed = true
	*cp.MaintenanceSchedule.Tasks[0].CompletedAt = done.Add(time.Hour)

	assert.Equal(t, "Arm", orig.Name)
	assert.Equal(t, 500.0, orig.Components[0].Specifications["weight"])
	assert.Equal(t, 3.0, orig.Components[0].Specifications["limits"].(map[string]interface{})["max"])
	assert.Equal(t, 2, orig.Components[0].RiskFactors[0].Severity)
	assert.Equal(t, done, *orig.MaintenanceSchedule.LastCompleted)
	assert.False(t, orig.MaintenanceSchedule.Tasks[0].Completed)
	assert.Equal(t, done, *orig.MaintenanceSchedule.Tasks[0].CompletedAt)
}

func TestMachineClone_Nil(t *testing.T) {
	var m *Machine
	assert.Nil(t, m.Clone())
	var s *MaintenanceSchedule
	assert.Nil(t, s.Clone())
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, MachineTypeDrone.Valid())
	assert.False(t, MachineType("Toaster").Valid())
	assert.True(t, MachineStatusOffline.Valid())
	assert.False(t, MachineStatus("").Valid())
	assert.Equal(t, 6, RiskFactor{Severity: 2, Probability: 3}.Score())
}

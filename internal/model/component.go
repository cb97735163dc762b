package model

import (
	"time"

	"gorm.io/datatypes"
)

// Category is the functional group a component belongs to.
type Category string

const (
	CategoryDrive              Category = "Drive"
	CategoryController         Category = "Controller"
	CategoryPower              Category = "Power"
	CategoryCommunication      Category = "Communication"
	CategorySoftware           Category = "Software"
	CategoryObjectManipulation Category = "Object Manipulation"
	CategorySensors            Category = "Sensors"
	CategoryChassis            Category = "Chassis"
)

// Categories lists every known component category in display order.
var Categories = []Category{
	CategoryDrive,
	CategoryController,
	CategoryPower,
	CategoryCommunication,
	CategorySoftware,
	CategoryObjectManipulation,
	CategorySensors,
	CategoryChassis,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Known unit-bearing specification keys.
const (
	SpecWeight  = "weight"
	SpecVoltage = "voltage"
	SpecCurrent = "current"
	SpecPower   = "power"
)

// Component is a hardware or software part that can be shared by machines.
type Component struct {
	ID             string            `gorm:"size:64;primaryKey" json:"id"`
	OwnerID        string            `gorm:"size:64;index" json:"ownerId,omitempty"`
	Name           string            `gorm:"size:256;not null" json:"name"`
	Category       Category          `gorm:"size:64;not null" json:"category"`
	Type           string            `gorm:"size:128" json:"type"`
	Description    string            `json:"description"`
	Specifications datatypes.JSONMap `json:"specifications"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`

	// Associations
	RiskFactors []RiskFactor `gorm:"foreignKey:ComponentID;constraint:OnDelete:CASCADE" json:"riskFactors"`
}

// RiskFactor is a named hazard attached to exactly one component.
type RiskFactor struct {
	ID          string `gorm:"size:64;primaryKey" json:"id"`
	ComponentID string `gorm:"size:64;index;not null" json:"-"`
	Position    int    `gorm:"not null;default:0" json:"-"`
	Name        string `gorm:"size:256;not null" json:"name"`
	Description string `json:"description"`
	Severity    int    `gorm:"not null" json:"severity"`
	Probability int    `gorm:"not null" json:"probability"`
}

// Score is severity multiplied by probability.
func (r RiskFactor) Score() int {
	return r.Severity * r.Probability
}

// Clone returns a deep copy of c.
func (c Component) Clone() Component {
	out := c
	if c.Specifications != nil {
		out.Specifications = datatypes.JSONMap(cloneMap(c.Specifications))
	}
	if c.RiskFactors != nil {
		out.RiskFactors = make([]RiskFactor, len(c.RiskFactors))
		copy(out.RiskFactors, c.RiskFactors)
	}
	return out
}

func cloneMap(src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(src))
	for k, v := range src {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneMap(val)
	case datatypes.JSONMap:
		return datatypes.JSONMap(cloneMap(val))
	case []interface{}:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	default:
		return val
	}
}

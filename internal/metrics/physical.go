package metrics

import (
	"fmt"
	"strings"

	"machine-fleet-backend/internal/model"
	"machine-fleet-backend/internal/parse"
)

// WeightGrams returns one component's weight in grams. A value mentioning
// "kg" in any case is taken as kilograms; everything else as grams.
func WeightGrams(c model.Component) float64 {
	raw := parse.SpecString(c.Specifications[model.SpecWeight])
	w, ok := parse.LeadingFloat(raw)
	if !ok {
		return 0
	}
	if strings.Contains(strings.ToLower(raw), "kg") {
		return w * 1000
	}
	return w
}

// TotalWeightGrams sums the weight of every component.
func TotalWeightGrams(components []model.Component) float64 {
	var total float64
	for _, c := range components {
		total += WeightGrams(c)
	}
	return total
}

// FormatWeight renders grams as kilograms above 1000 g.
func FormatWeight(grams float64) string {
	if grams > 1000 {
		return fmt.Sprintf("%.2f kg", grams/1000)
	}
	return fmt.Sprintf("%.2f g", grams)
}

// PowerWatts returns one component's power draw. voltage*current wins when
// both are numeric, then the power field, then zero.
func PowerWatts(c model.Component) float64 {
	voltage, vok := specFloat(c, model.SpecVoltage)
	current, cok := specFloat(c, model.SpecCurrent)
	if vok && cok {
		return voltage * current
	}
	if p, ok := specFloat(c, model.SpecPower); ok {
		return p
	}
	return 0
}

// TotalPowerWatts sums the power draw of every component.
func TotalPowerWatts(components []model.Component) float64 {
	var total float64
	for _, c := range components {
		total += PowerWatts(c)
	}
	return total
}

// FormatPower renders watts as kilowatts above 1000 W.
func FormatPower(watts float64) string {
	if watts > 1000 {
		return fmt.Sprintf("%.2f kW", watts/1000)
	}
	return fmt.Sprintf("%.2f W", watts)
}

func specFloat(c model.Component, key string) (float64, bool) {
	return parse.LeadingFloat(parse.SpecString(c.Specifications[key]))
}

package metrics

import "machine-fleet-backend/internal/model"

// Report bundles every derived metric of a machine.
type Report struct {
	WeightGrams      float64 `json:"weightGrams"`
	Weight           string  `json:"weight"`
	PowerWatts       float64 `json:"powerWatts"`
	Power            string  `json:"power"`
	RiskScore        int     `json:"riskScore"`
	RiskLevel        string  `json:"riskLevel"`
	AverageRiskScore float64 `json:"averageRiskScore"`
	Performance      Score   `json:"performance"`
	Reliability      Score   `json:"reliability"`
	Efficiency       Score   `json:"efficiency"`
	ComponentCount   int     `json:"componentCount"`
}

// Compute derives the full report for m. A nil machine yields the report of
// an empty machine.
func Compute(m *model.Machine) Report {
	var components []model.Component
	var schedule *model.MaintenanceSchedule
	if m != nil {
		components = m.Components
		schedule = m.MaintenanceSchedule
	}

	weight := TotalWeightGrams(components)
	power := TotalPowerWatts(components)
	risk := MaxRiskScore(components)

	return Report{
		WeightGrams:      weight,
		Weight:           FormatWeight(weight),
		PowerWatts:       power,
		Power:            FormatPower(power),
		RiskScore:        risk,
		RiskLevel:        RiskLevel(risk),
		AverageRiskScore: AverageRiskScore(components),
		Performance:      PerformanceScore(components),
		Reliability:      ReliabilityScore(components, schedule),
		Efficiency:       EfficiencyScore(components),
		ComponentCount:   len(components),
	}
}

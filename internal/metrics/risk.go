package metrics

import "machine-fleet-backend/internal/model"

// Risk levels used for categorical banding.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// ComponentRiskScore is the highest severity times the highest probability
// among the component's risk factors, or 0 without factors.
func ComponentRiskScore(c model.Component) int {
	var maxSeverity, maxProbability int
	for _, rf := range c.RiskFactors {
		if rf.Severity > maxSeverity {
			maxSeverity = rf.Severity
		}
		if rf.Probability > maxProbability {
			maxProbability = rf.Probability
		}
	}
	return maxSeverity * maxProbability
}

// MaxRiskScore is the machine's categorical risk score (0-25): the maximum
// ComponentRiskScore over all components.
func MaxRiskScore(components []model.Component) int {
	var score int
	for _, c := range components {
		if s := ComponentRiskScore(c); s > score {
			score = s
		}
	}
	return score
}

// RiskLevel bands a MaxRiskScore value.
func RiskLevel(score int) string {
	switch {
	case score >= 15:
		return RiskHigh
	case score >= 6:
		return RiskMedium
	default:
		return RiskLow
	}
}

// meanFactorScore is the average severity*probability over every risk factor
// of every component (1-25), 0 when there are none.
func meanFactorScore(components []model.Component) float64 {
	var sum, n int
	for _, c := range components {
		for _, rf := range c.RiskFactors {
			sum += rf.Score()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// AverageRiskScore is the continuous gauge variant (0-100): the mean
// per-factor score scaled from 25 to 100. It is not a substitute for
// MaxRiskScore.
func AverageRiskScore(components []model.Component) float64 {
	return meanFactorScore(components) * 100 / 25
}

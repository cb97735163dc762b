package metrics

import (
	"math"

	"machine-fleet-backend/internal/model"
)

// Ratings for the 0-100 advisory scores.
const (
	RatingLow       = "Low"
	RatingAverage   = "Average"
	RatingGood      = "Good"
	RatingExcellent = "Excellent"
)

// Score is an advisory 0-100 value with its rating bucket.
type Score struct {
	Value  int    `json:"value"`
	Rating string `json:"rating"`
}

// Rating buckets a 0-100 score.
func Rating(score int) string {
	switch {
	case score >= 80:
		return RatingExcellent
	case score >= 60:
		return RatingGood
	case score >= 40:
		return RatingAverage
	default:
		return RatingLow
	}
}

func newScore(raw float64) Score {
	v := int(math.Round(clamp(raw, 0, 100)))
	return Score{Value: v, Rating: Rating(v)}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Heuristic constants.
const (
	pointsPerCategory   = 10
	coreTrioBonus       = 20
	reliabilityBase     = 75
	riskPenaltyFactor   = 3
	scheduleBonus       = 10
	pointsPerTask       = 2
	maxTaskBonus        = 10
	efficiencyBase      = 70
	powerAdjustment     = 15
	minEfficientWatts   = 50
	maxEfficientWatts   = 2000
	softwareBonus       = 10
	sensorsBonus        = 5
	idealMinComponents  = 4
	idealMaxComponents  = 8
	idealCountBonus     = 15
	smallCountBonus     = 5
	oversizedCountBonus = 10
)

func categorySet(components []model.Component) map[model.Category]struct{} {
	set := make(map[model.Category]struct{})
	for _, c := range components {
		if c.Category.Valid() {
			set[c.Category] = struct{}{}
		}
	}
	return set
}

// PerformanceScore rewards category diversity, the presence of a
// controller, power and drive together, and a 4-8 component count.
func PerformanceScore(components []model.Component) Score {
	cats := categorySet(components)
	score := float64(len(cats) * pointsPerCategory)

	_, hasController := cats[model.CategoryController]
	_, hasPower := cats[model.CategoryPower]
	_, hasDrive := cats[model.CategoryDrive]
	if hasController && hasPower && hasDrive {
		score += coreTrioBonus
	}

	n := len(components)
	switch {
	case n >= idealMinComponents && n <= idealMaxComponents:
		score += idealCountBonus
	case n > idealMaxComponents:
		score += oversizedCountBonus
	case n > 0:
		score += smallCountBonus
	}
	return newScore(score)
}

// ReliabilityScore starts at 75, loses three points per unit of mean risk
// factor score, and gains up to 20 for a maintenance schedule with tasks.
func ReliabilityScore(components []model.Component, schedule *model.MaintenanceSchedule) Score {
	score := reliabilityBase - riskPenaltyFactor*meanFactorScore(components)
	if schedule != nil {
		score += scheduleBonus
		score += math.Min(maxTaskBonus, float64(len(schedule.Tasks)*pointsPerTask))
	}
	return newScore(score)
}

// EfficiencyScore starts at 70 and is adjusted by total power draw and by
// the presence of software and sensor components.
func EfficiencyScore(components []model.Component) Score {
	score := float64(efficiencyBase)

	watts := TotalPowerWatts(components)
	if watts > 0 {
		if watts >= minEfficientWatts && watts <= maxEfficientWatts {
			score += powerAdjustment
		} else {
			score -= powerAdjustment
		}
	}

	cats := categorySet(components)
	if _, ok := cats[model.CategorySoftware]; ok {
		score += softwareBonus
	}
	if _, ok := cats[model.CategorySensors]; ok {
		score += sensorsBonus
	}
	return newScore(score)
}

package workflow

import (
	"time"

	"bitbucket.org/mmdatafocus/safety_backend/models"
)

// RiskAssessment is the full scoring output for one site: the weighted total,
// the derived category, the per-dimension sub-scores and the dominant factor.
type RiskAssessment struct {
	Score           float64
	Category        models.RiskCategory
	IncidentScore   float64
	ActionScore     float64
	InspectionScore float64
	PrimaryFactor   models.RiskFactor
	Counts          RiskCounts
	WindowDays      int
	CalculatedAt    time.Time
}

// ComputeRiskScore is the linear scoring model: each raw count multiplied by its
// weight, summed. Pure function, no I/O; determinism and explainability over
// predictive accuracy.
func ComputeRiskScore(counts RiskCounts, settings models.ScoringSettings, now time.Time) RiskAssessment {
	weights := settings.Weights

	incidentScore := float64(counts.IncidentsCritical)*weights[models.WeightIncidentCritical] +
		float64(counts.IncidentsHigh)*weights[models.WeightIncidentHigh] +
		float64(counts.IncidentsMedium)*weights[models.WeightIncidentMedium] +
		float64(counts.IncidentsLow)*weights[models.WeightIncidentLow]
	actionScore := float64(counts.OverdueActions) * weights[models.WeightOverdueAction]
	inspectionScore := float64(counts.FailedInspections) * weights[models.WeightFailedInspection]

	score := incidentScore + actionScore + inspectionScore

	return RiskAssessment{
		Score:           score,
		Category:        categorize(score, settings.Thresholds),
		IncidentScore:   incidentScore,
		ActionScore:     actionScore,
		InspectionScore: inspectionScore,
		PrimaryFactor:   primaryFactor(incidentScore, actionScore, inspectionScore),
		Counts:          counts,
		WindowDays:      settings.ScoringWindowDays,
		CalculatedAt:    now,
	}
}

// categorize uses strictly-greater-than comparisons against the ascending
// boundary triple, so a score exactly on a boundary falls into the lower
// category.
func categorize(score float64, t models.RiskThresholds) models.RiskCategory {
	switch {
	case score > t.High:
		return models.RiskCategoryCritical
	case score > t.Medium:
		return models.RiskCategoryHigh
	case score > t.Low:
		return models.RiskCategoryMedium
	default:
		return models.RiskCategoryLow
	}
}

// primaryFactor picks the strictly highest sub-score; ties go to the earlier
// entry in the fixed priority order incidents > actions > inspections.
func primaryFactor(incidentScore, actionScore, inspectionScore float64) models.RiskFactor {
	if incidentScore == 0 && actionScore == 0 && inspectionScore == 0 {
		return models.RiskFactorNone
	}
	factor := models.RiskFactorIncidents
	best := incidentScore
	if actionScore > best {
		factor = models.RiskFactorActions
		best = actionScore
	}
	if inspectionScore > best {
		factor = models.RiskFactorInspections
	}
	return factor
}

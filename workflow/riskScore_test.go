package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/safety_backend/models"
)

// NOTE: These tests are intentionally DB-free. They validate the scoring model
// semantics: the linear weighting, the boundary tie-breaks and the dominant
// factor priority order, all of which are user-visible in dashboards.

func defaultSettings() models.ScoringSettings {
	return models.DefaultScoringSettings()
}

func TestComputeRiskScore_LinearWeighting(t *testing.T) {
	counts := RiskCounts{
		IncidentsCritical: 2,
		OverdueActions:    1,
	}
	assessment := ComputeRiskScore(counts, defaultSettings(), time.Now())

	if assessment.Score != 23 {
		t.Fatalf("expected score 23 (2x10 + 1x3), got %v", assessment.Score)
	}
	if assessment.Category != models.RiskCategoryMedium {
		t.Fatalf("expected category medium for score 23, got %s", assessment.Category)
	}
	if assessment.PrimaryFactor != models.RiskFactorIncidents {
		t.Fatalf("expected primary factor incidents (sub-score 20 > 3), got %s", assessment.PrimaryFactor)
	}
	if assessment.IncidentScore != 20 || assessment.ActionScore != 3 || assessment.InspectionScore != 0 {
		t.Fatalf("unexpected sub-scores: %v/%v/%v",
			assessment.IncidentScore, assessment.ActionScore, assessment.InspectionScore)
	}
}

func TestCategorize_BoundaryTieBreak(t *testing.T) {
	thresholds := models.RiskThresholds{Low: 10, Medium: 30, High: 50}
	cases := []struct {
		score float64
		want  models.RiskCategory
	}{
		{0, models.RiskCategoryLow},
		{10, models.RiskCategoryLow},
		{11, models.RiskCategoryMedium},
		{30, models.RiskCategoryMedium},
		{31, models.RiskCategoryHigh},
		{50, models.RiskCategoryHigh},
		{51, models.RiskCategoryCritical},
	}
	for _, c := range cases {
		if got := categorize(c.score, thresholds); got != c.want {
			t.Errorf("score %v: expected %s, got %s", c.score, c.want, got)
		}
	}
}

func TestPrimaryFactor_TieBreakAndNone(t *testing.T) {
	// Equal incident and action sub-scores resolve to incidents by priority.
	if got := primaryFactor(5, 5, 0); got != models.RiskFactorIncidents {
		t.Fatalf("expected incidents on tie, got %s", got)
	}
	if got := primaryFactor(0, 5, 5); got != models.RiskFactorActions {
		t.Fatalf("expected actions on action/inspection tie, got %s", got)
	}
	if got := primaryFactor(0, 0, 4); got != models.RiskFactorInspections {
		t.Fatalf("expected inspections, got %s", got)
	}
	if got := primaryFactor(0, 0, 0); got != models.RiskFactorNone {
		t.Fatalf("expected none when all sub-scores are zero, got %s", got)
	}
}

func TestComputeRiskScore_UsesCustomWeightsAndWindow(t *testing.T) {
	settings := defaultSettings()
	settings.ScoringWindowDays = 30
	settings.Weights[models.WeightFailedInspection] = 7

	counts := RiskCounts{FailedInspections: 3}
	assessment := ComputeRiskScore(counts, settings, time.Now())

	if assessment.Score != 21 {
		t.Fatalf("expected score 21 (3x7), got %v", assessment.Score)
	}
	if assessment.PrimaryFactor != models.RiskFactorInspections {
		t.Fatalf("expected primary factor inspections, got %s", assessment.PrimaryFactor)
	}
	if assessment.WindowDays != 30 {
		t.Fatalf("expected window 30 carried through, got %d", assessment.WindowDays)
	}
}

package models

import (
	"testing"

	"gorm.io/datatypes"
)

func TestParseScoringSettings_EmptyFallsBackToDefaults(t *testing.T) {
	settings := ParseScoringSettings(nil)
	if !settings.Enabled {
		t.Fatal("expected scoring enabled by default")
	}
	if settings.ScoringWindowDays != DefaultScoringWindowDays {
		t.Fatalf("expected default window %d, got %d", DefaultScoringWindowDays, settings.ScoringWindowDays)
	}
	if settings.Weights[WeightIncidentCritical] != 10 {
		t.Fatalf("expected default critical weight 10, got %v", settings.Weights[WeightIncidentCritical])
	}
	if settings.Thresholds != DefaultRiskThresholds() {
		t.Fatalf("expected default thresholds, got %+v", settings.Thresholds)
	}
}

func TestParseScoringSettings_MergesOverrides(t *testing.T) {
	raw := datatypes.JSON([]byte(`{
		"enabled": false,
		"scoringWindowDays": 30,
		"weights": {"incidentCritical": 20, "unknownKey": 99},
		"thresholds": {"low": 5, "medium": 15, "high": 40}
	}`))
	settings := ParseScoringSettings(raw)

	if settings.Enabled {
		t.Fatal("expected enabled=false override applied")
	}
	if settings.ScoringWindowDays != 30 {
		t.Fatalf("expected window 30, got %d", settings.ScoringWindowDays)
	}
	if settings.Weights[WeightIncidentCritical] != 20 {
		t.Fatalf("expected critical weight 20, got %v", settings.Weights[WeightIncidentCritical])
	}
	if _, ok := settings.Weights["unknownKey"]; ok {
		t.Fatal("unknown weight keys must be ignored")
	}
	if settings.Weights[WeightOverdueAction] != 3 {
		t.Fatalf("untouched weights must keep defaults, got %v", settings.Weights[WeightOverdueAction])
	}
	want := RiskThresholds{Low: 5, Medium: 15, High: 40}
	if settings.Thresholds != want {
		t.Fatalf("expected thresholds %+v, got %+v", want, settings.Thresholds)
	}
}

func TestParseScoringSettings_RejectsInvalidValues(t *testing.T) {
	// Unparseable blob: everything defaults.
	settings := ParseScoringSettings(datatypes.JSON([]byte(`{not json`)))
	if !settings.Enabled || settings.ScoringWindowDays != DefaultScoringWindowDays {
		t.Fatal("broken blob must fall back to defaults")
	}

	// Non-ascending thresholds are invalid and keep the defaults.
	settings = ParseScoringSettings(datatypes.JSON([]byte(`{"thresholds": {"low": 50, "medium": 30, "high": 10}}`)))
	if settings.Thresholds != DefaultRiskThresholds() {
		t.Fatalf("invalid thresholds must keep defaults, got %+v", settings.Thresholds)
	}

	// Non-positive window is ignored.
	settings = ParseScoringSettings(datatypes.JSON([]byte(`{"scoringWindowDays": -5}`)))
	if settings.ScoringWindowDays != DefaultScoringWindowDays {
		t.Fatalf("negative window must keep default, got %d", settings.ScoringWindowDays)
	}

	// Negative weights are ignored.
	settings = ParseScoringSettings(datatypes.JSON([]byte(`{"weights": {"overdueAction": -1}}`)))
	if settings.Weights[WeightOverdueAction] != 3 {
		t.Fatalf("negative weight must keep default, got %v", settings.Weights[WeightOverdueAction])
	}
}

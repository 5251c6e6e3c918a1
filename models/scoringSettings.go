package models

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"bitbucket.org/mmdatafocus/safety_backend/config"
)

// Weight map keys for the linear scoring model.
const (
	WeightIncidentCritical = "incidentCritical"
	WeightIncidentHigh     = "incidentHigh"
	WeightIncidentMedium   = "incidentMedium"
	WeightIncidentLow      = "incidentLow"
	WeightOverdueAction    = "overdueAction"
	WeightFailedInspection = "failedInspection"
)

const DefaultScoringWindowDays = 90

var validate = validator.New()

// RiskThresholds are the ascending category boundaries. A score exactly equal to
// a boundary falls into the lower category; this tie-break is user-visible in
// dashboards and must not change.
type RiskThresholds struct {
	Low    float64 `json:"low" validate:"gte=0"`
	Medium float64 `json:"medium" validate:"gtfield=Low"`
	High   float64 `json:"high" validate:"gtfield=Medium"`
}

// ScoringSettings is the per-tenant scoring configuration embedded in the tenant
// row. It is owned by tenant administration; the pipeline treats it as read-only
// and falls back to defaults whenever the blob is absent or unreadable.
type ScoringSettings struct {
	Enabled           bool               `json:"enabled"`
	ScoringWindowDays int                `json:"scoringWindowDays"`
	Weights           map[string]float64 `json:"weights"`
	Thresholds        RiskThresholds     `json:"thresholds"`
}

func DefaultRiskWeights() map[string]float64 {
	return map[string]float64{
		WeightIncidentCritical: 10,
		WeightIncidentHigh:     5,
		WeightIncidentMedium:   2,
		WeightIncidentLow:      1,
		WeightOverdueAction:    3,
		WeightFailedInspection: 2,
	}
}

func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{Low: 10, Medium: 30, High: 50}
}

func DefaultScoringSettings() ScoringSettings {
	return ScoringSettings{
		Enabled:           true,
		ScoringWindowDays: config.RiskScoringWindowDays(),
		Weights:           DefaultRiskWeights(),
		Thresholds:        DefaultRiskThresholds(),
	}
}

// ParseScoringSettings merges the tenant's overrides over the defaults. Any
// field that is missing, unparseable or invalid keeps its default so a broken
// settings blob can never stop the scoring job.
func ParseScoringSettings(raw datatypes.JSON) ScoringSettings {
	settings := DefaultScoringSettings()
	if len(raw) == 0 {
		return settings
	}

	var in struct {
		Enabled           *bool              `json:"enabled"`
		ScoringWindowDays *int               `json:"scoringWindowDays"`
		Weights           map[string]float64 `json:"weights"`
		Thresholds        *RiskThresholds    `json:"thresholds"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return settings
	}

	if in.Enabled != nil {
		settings.Enabled = *in.Enabled
	}
	if in.ScoringWindowDays != nil && *in.ScoringWindowDays > 0 {
		settings.ScoringWindowDays = *in.ScoringWindowDays
	}
	for key, weight := range in.Weights {
		if _, known := settings.Weights[key]; known && weight >= 0 {
			settings.Weights[key] = weight
		}
	}
	if in.Thresholds != nil {
		if err := validate.Struct(in.Thresholds); err == nil {
			settings.Thresholds = *in.Thresholds
		}
	}
	return settings
}

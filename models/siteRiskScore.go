package models

import "time"

// SiteRiskScore holds the current risk assessment for one site: the weighted
// score, the derived category, the per-dimension sub-scores and the raw counts
// that produced them. Exactly one live row per (tenant, site); the scoring job
// replaces it in place. Consumers see the last successful run's values when a
// newer run fails.
type SiteRiskScore struct {
	TenantId string `gorm:"primaryKey;size:64" json:"tenant_id"`
	SiteId   string `gorm:"primaryKey;size:64" json:"site_id"`

	RiskScore    float64      `gorm:"default:0" json:"risk_score"`
	RiskCategory RiskCategory `gorm:"size:20" json:"risk_category"`

	IncidentScore   float64 `gorm:"default:0" json:"incident_score"`
	ActionScore     float64 `gorm:"default:0" json:"action_score"`
	InspectionScore float64 `gorm:"default:0" json:"inspection_score"`

	IncidentsCritical int `gorm:"default:0" json:"incidents_critical"`
	IncidentsHigh     int `gorm:"default:0" json:"incidents_high"`
	IncidentsMedium   int `gorm:"default:0" json:"incidents_medium"`
	IncidentsLow      int `gorm:"default:0" json:"incidents_low"`
	OverdueActions    int `gorm:"default:0" json:"overdue_actions"`
	FailedInspections int `gorm:"default:0" json:"failed_inspections"`

	PrimaryFactor     RiskFactor `gorm:"size:20" json:"primary_factor"`
	ScoringWindowDays int        `gorm:"default:0" json:"scoring_window_days"`
	CalculatedAt      time.Time  `json:"calculated_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SiteRiskScore) TableName() string {
	return "site_risk_scores"
}

// SiteRiskScoreHistory is the append/overwrite-by-day snapshot of SiteRiskScore
// used for trend queries. At most one row per site per calendar day; re-running
// scoring within the same day overwrites that day's row.
type SiteRiskScoreHistory struct {
	TenantId     string    `gorm:"primaryKey;size:64" json:"tenant_id"`
	SiteId       string    `gorm:"primaryKey;size:64" json:"site_id"`
	RecordedDate time.Time `gorm:"primaryKey" json:"recorded_date"`

	RiskScore    float64      `gorm:"default:0" json:"risk_score"`
	RiskCategory RiskCategory `gorm:"size:20" json:"risk_category"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SiteRiskScoreHistory) TableName() string {
	return "site_risk_score_history"
}

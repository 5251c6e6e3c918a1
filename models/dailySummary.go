package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary is a query-friendly aggregate table used by dashboards.
//
// Grain: (tenant_id, site_id, summary_date, incident_type_id, severity).
// Site, incident type and severity use sentinels (nil UUID, 0, "all") instead of
// NULL so the full key can carry a uniqueness constraint; rows with sentinel
// site/type/severity are tenant-wide rollups, not missing data.
//
// Each count column belongs to exactly one dimension (incidents, inspections,
// actions). Dimension rollups are computed independently and merged into the same
// row with additive COALESCE upserts, so a rollup only ever touches its own
// columns. Re-running a date is made safe by deleting the date's rows first.
//
// NOTE: this table is derived data and can be rebuilt from the source records
// (see cmd/backfill-daily-summary).
type DailySummary struct {
	TenantId       string    `gorm:"primaryKey;size:64" json:"tenant_id"`
	SiteId         string    `gorm:"primaryKey;size:64" json:"site_id"`
	SummaryDate    time.Time `gorm:"primaryKey" json:"summary_date"`
	IncidentTypeId int       `gorm:"primaryKey" json:"incident_type_id"`
	Severity       Severity  `gorm:"primaryKey;size:20" json:"severity"`

	IncidentCount             int             `gorm:"default:0" json:"incident_count"`
	IncidentsClosed           int             `gorm:"default:0" json:"incidents_closed"`
	IncidentResolutionDaysSum decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"incident_resolution_days_sum"`

	InspectionCount   int `gorm:"default:0" json:"inspection_count"`
	InspectionsPassed int `gorm:"default:0" json:"inspections_passed"`
	InspectionsFailed int `gorm:"default:0" json:"inspections_failed"`

	ActionsCreated   int `gorm:"default:0" json:"actions_created"`
	ActionsCompleted int `gorm:"default:0" json:"actions_completed"`
	ActionsOverdue   int `gorm:"default:0" json:"actions_overdue"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DailySummary) TableName() string {
	return "daily_summaries"
}

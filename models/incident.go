package models

import (
	"time"

	"gorm.io/gorm"
)

// Incident, Inspection and Action are the raw transactional records the pipeline
// aggregates. They are owned by the CRUD application; the pipeline never mutates
// them and only queries by tenant, site and time window.

type Incident struct {
	Id             int            `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantId       string         `gorm:"size:64;index:idx_incidents_tenant_occurred,priority:1" json:"tenant_id"`
	SiteId         string         `gorm:"size:64;index" json:"site_id"`
	IncidentTypeId int            `json:"incident_type_id"`
	Severity       Severity       `gorm:"size:20" json:"severity"`
	Status         IncidentStatus `gorm:"size:20" json:"status"`
	OccurredAt     time.Time      `gorm:"index:idx_incidents_tenant_occurred,priority:2" json:"occurred_at"`
	ClosedAt       *time.Time     `json:"closed_at"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Incident) TableName() string {
	return "incidents"
}

type Inspection struct {
	Id            int              `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantId      string           `gorm:"size:64;index:idx_inspections_tenant_performed,priority:1" json:"tenant_id"`
	SiteId        string           `gorm:"size:64;index" json:"site_id"`
	PerformedAt   time.Time        `gorm:"index:idx_inspections_tenant_performed,priority:2" json:"performed_at"`
	OverallResult InspectionResult `gorm:"size:10" json:"overall_result"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Inspection) TableName() string {
	return "inspections"
}

// Action links back to its source record via (source_type, source_id); today the
// only source is an incident, which is also how an action resolves to a site.
type Action struct {
	Id         int              `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceType ActionSourceType `gorm:"size:20;index:idx_actions_source,priority:1" json:"source_type"`
	SourceId   int              `gorm:"index:idx_actions_source,priority:2" json:"source_id"`
	Status     ActionStatus     `gorm:"size:20;index" json:"status"`
	DueDate    *time.Time       `gorm:"index" json:"due_date"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Action) TableName() string {
	return "actions"
}

package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tenant is an isolated customer organisation. All aggregate rows are scoped by
// tenant id. RiskSettings holds the tenant's scoring overrides as a JSON blob
// owned by tenant administration; the pipeline only ever reads it.
type Tenant struct {
	Id       string `gorm:"primaryKey;size:64" json:"id"`
	Name     string `gorm:"size:255" json:"name"`
	Timezone string `gorm:"size:64" json:"timezone"`

	RiskSettings datatypes.JSON `gorm:"column:risk_settings" json:"risk_settings"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Tenant) TableName() string {
	return "tenants"
}

type Site struct {
	Id       string `gorm:"primaryKey;size:64" json:"id"`
	TenantId string `gorm:"size:64;index" json:"tenant_id"`
	Name     string `gorm:"size:255" json:"name"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Site) TableName() string {
	return "sites"
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// JobRun records one timed execution of a scheduled batch job, independent of the
// business outcome. Status is monotonic: running -> completed or running ->
// failed, never reversed, and completed_at is written exactly once at the
// terminal transition. A process crash can leave a row in "running" forever;
// those are swept to "failed" at startup (see workflow.JobLedger.ReapStaleRuns).
type JobRun struct {
	Id       int          `gorm:"primaryKey;autoIncrement" json:"id"`
	JobName  string       `gorm:"size:64;index:idx_job_runs_name_status,priority:1" json:"job_name"`
	TenantId *string      `gorm:"size:64;index" json:"tenant_id"`
	Status   JobRunStatus `gorm:"size:20;index:idx_job_runs_name_status,priority:2" json:"status"`

	StartedAt   time.Time  `gorm:"index" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	ItemsProcessed int `gorm:"default:0" json:"items_processed"`
	ItemsSucceeded int `gorm:"default:0" json:"items_succeeded"`
	ItemsFailed    int `gorm:"default:0" json:"items_failed"`

	ErrorMessage *string        `gorm:"type:text" json:"error_message"`
	Metadata     datatypes.JSON `json:"metadata"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (JobRun) TableName() string {
	return "job_runs"
}

package models

import "github.com/google/uuid"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SeverityAll is the sentinel stored in place of NULL so the severity column can
// participate in the daily_summaries composite primary key.
const SeverityAll Severity = "all"

// NilSiteId is the sentinel stored in place of NULL for tenant-wide summary rows.
var NilSiteId = uuid.Nil.String()

type IncidentStatus string

const (
	IncidentStatusOpen          IncidentStatus = "open"
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusClosed        IncidentStatus = "closed"
)

type InspectionResult string

const (
	InspectionResultPass InspectionResult = "pass"
	InspectionResultFail InspectionResult = "fail"
)

type ActionStatus string

const (
	ActionStatusOpen       ActionStatus = "open"
	ActionStatusInProgress ActionStatus = "in_progress"
	ActionStatusCompleted  ActionStatus = "completed"
	ActionStatusCancelled  ActionStatus = "cancelled"
)

type ActionSourceType string

const ActionSourceIncident ActionSourceType = "incident"

type RiskCategory string

const (
	RiskCategoryLow      RiskCategory = "low"
	RiskCategoryMedium   RiskCategory = "medium"
	RiskCategoryHigh     RiskCategory = "high"
	RiskCategoryCritical RiskCategory = "critical"
)

type RiskFactor string

const (
	RiskFactorIncidents   RiskFactor = "incidents"
	RiskFactorActions     RiskFactor = "actions"
	RiskFactorInspections RiskFactor = "inspections"
	RiskFactorNone        RiskFactor = "none"
)

type JobRunStatus string

const (
	JobRunStatusRunning   JobRunStatus = "running"
	JobRunStatusCompleted JobRunStatus = "completed"
	JobRunStatusFailed    JobRunStatus = "failed"
)

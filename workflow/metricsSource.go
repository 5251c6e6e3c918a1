package workflow

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/safety_backend/models"
)

// ActionDayCounts is the per-site action rollup for one calendar day. Actions
// carry no tenant or site of their own; both are resolved by joining the source
// incident.
type ActionDayCounts struct {
	SiteId    string
	Created   int
	Completed int
	Overdue   int
}

// RiskCounts are the raw inputs to the scoring model for one site, counted over
// the tenant's rolling window.
type RiskCounts struct {
	IncidentsCritical int
	IncidentsHigh     int
	IncidentsMedium   int
	IncidentsLow      int
	OverdueActions    int
	FailedInspections int
}

// MetricsSource is the read-only view of the transactional records the pipeline
// consumes. Implementations must never mutate the source tables. Day parameters
// are midnight-UTC; implementations query the half-open range [day, day+24h).
type MetricsSource interface {
	ActiveTenants(ctx context.Context) ([]models.Tenant, error)
	TenantSites(ctx context.Context, tenantId string) ([]models.Site, error)

	IncidentsOccurred(ctx context.Context, tenantId string, day time.Time) ([]models.Incident, error)
	InspectionsPerformed(ctx context.Context, tenantId string, day time.Time) ([]models.Inspection, error)
	ActionDayRollups(ctx context.Context, tenantId string, day time.Time) ([]ActionDayCounts, error)

	SiteRiskCounts(ctx context.Context, tenantId string, siteId string, since time.Time, now time.Time) (RiskCounts, error)
}

type gormMetricsSource struct {
	db *gorm.DB
}

func NewMetricsSource(db *gorm.DB) MetricsSource {
	return &gormMetricsSource{db: db}
}

func (s *gormMetricsSource) ActiveTenants(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := s.db.WithContext(ctx).Order("id").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

func (s *gormMetricsSource) TenantSites(ctx context.Context, tenantId string) ([]models.Site, error) {
	var sites []models.Site
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantId).Order("id").Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

func (s *gormMetricsSource) IncidentsOccurred(ctx context.Context, tenantId string, day time.Time) ([]models.Incident, error) {
	dayEnd := day.Add(24 * time.Hour)
	var incidents []models.Incident
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND occurred_at >= ? AND occurred_at < ?", tenantId, day, dayEnd).
		Find(&incidents).Error
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

func (s *gormMetricsSource) InspectionsPerformed(ctx context.Context, tenantId string, day time.Time) ([]models.Inspection, error) {
	dayEnd := day.Add(24 * time.Hour)
	var inspections []models.Inspection
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND performed_at >= ? AND performed_at < ?", tenantId, day, dayEnd).
		Find(&inspections).Error
	if err != nil {
		return nil, err
	}
	return inspections, nil
}

type siteCountRow struct {
	SiteId string
	N      int
}

func (s *gormMetricsSource) actionSiteCounts(ctx context.Context, tenantId string, extraCond func(*gorm.DB) *gorm.DB) ([]siteCountRow, error) {
	var rows []siteCountRow
	query := s.db.WithContext(ctx).
		Model(&models.Action{}).
		Select("incidents.site_id AS site_id, COUNT(*) AS n").
		Joins("JOIN incidents ON incidents.id = actions.source_id AND actions.source_type = ?", models.ActionSourceIncident).
		Where("incidents.tenant_id = ? AND incidents.deleted_at IS NULL", tenantId).
		Group("incidents.site_id")
	if err := extraCond(query).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *gormMetricsSource) ActionDayRollups(ctx context.Context, tenantId string, day time.Time) ([]ActionDayCounts, error) {
	dayEnd := day.Add(24 * time.Hour)

	created, err := s.actionSiteCounts(ctx, tenantId, func(q *gorm.DB) *gorm.DB {
		return q.Where("actions.created_at >= ? AND actions.created_at < ?", day, dayEnd)
	})
	if err != nil {
		return nil, err
	}
	completed, err := s.actionSiteCounts(ctx, tenantId, func(q *gorm.DB) *gorm.DB {
		return q.Where("actions.status = ? AND actions.updated_at >= ? AND actions.updated_at < ?",
			models.ActionStatusCompleted, day, dayEnd)
	})
	if err != nil {
		return nil, err
	}
	// "Became overdue on this day": still unresolved and due that day.
	overdue, err := s.actionSiteCounts(ctx, tenantId, func(q *gorm.DB) *gorm.DB {
		return q.Where("actions.status NOT IN ? AND actions.due_date >= ? AND actions.due_date < ?",
			[]models.ActionStatus{models.ActionStatusCompleted, models.ActionStatusCancelled}, day, dayEnd)
	})
	if err != nil {
		return nil, err
	}

	bySite := map[string]*ActionDayCounts{}
	counts := func(siteId string) *ActionDayCounts {
		if c, ok := bySite[siteId]; ok {
			return c
		}
		c := &ActionDayCounts{SiteId: siteId}
		bySite[siteId] = c
		return c
	}
	for _, row := range created {
		counts(row.SiteId).Created = row.N
	}
	for _, row := range completed {
		counts(row.SiteId).Completed = row.N
	}
	for _, row := range overdue {
		counts(row.SiteId).Overdue = row.N
	}

	rollups := make([]ActionDayCounts, 0, len(bySite))
	for _, c := range bySite {
		rollups = append(rollups, *c)
	}
	return rollups, nil
}

func (s *gormMetricsSource) SiteRiskCounts(ctx context.Context, tenantId string, siteId string, since time.Time, now time.Time) (RiskCounts, error) {
	var counts RiskCounts

	type severityRow struct {
		Severity models.Severity
		N        int
	}
	var severities []severityRow
	err := s.db.WithContext(ctx).
		Model(&models.Incident{}).
		Select("severity, COUNT(*) AS n").
		Where("tenant_id = ? AND site_id = ? AND occurred_at >= ? AND occurred_at < ?", tenantId, siteId, since, now).
		Group("severity").
		Scan(&severities).Error
	if err != nil {
		return counts, err
	}
	for _, row := range severities {
		switch row.Severity {
		case models.SeverityCritical:
			counts.IncidentsCritical = row.N
		case models.SeverityHigh:
			counts.IncidentsHigh = row.N
		case models.SeverityMedium:
			counts.IncidentsMedium = row.N
		case models.SeverityLow:
			counts.IncidentsLow = row.N
		}
	}

	// Overdue is assessed against "now", not the window: an action overdue for
	// 200 days still counts even with a 90-day window.
	var overdue int64
	err = s.db.WithContext(ctx).
		Model(&models.Action{}).
		Joins("JOIN incidents ON incidents.id = actions.source_id AND actions.source_type = ?", models.ActionSourceIncident).
		Where("incidents.tenant_id = ? AND incidents.site_id = ? AND incidents.deleted_at IS NULL", tenantId, siteId).
		Where("actions.status NOT IN ?", []models.ActionStatus{models.ActionStatusCompleted, models.ActionStatusCancelled}).
		Where("actions.due_date IS NOT NULL AND actions.due_date < ?", now).
		Count(&overdue).Error
	if err != nil {
		return counts, err
	}
	counts.OverdueActions = int(overdue)

	var failed int64
	err = s.db.WithContext(ctx).
		Model(&models.Inspection{}).
		Where("tenant_id = ? AND site_id = ? AND performed_at >= ? AND performed_at < ?", tenantId, siteId, since, now).
		Where("overall_result = ?", models.InspectionResultFail).
		Count(&failed).Error
	if err != nil {
		return counts, err
	}
	counts.FailedInspections = int(failed)

	return counts, nil
}

package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/safety_backend/models"
	"bitbucket.org/mmdatafocus/safety_backend/utils"
)

var aggDay = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func seedTenant(t *testing.T, db *gorm.DB, id string, siteIds ...string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Tenant{Id: id, Name: id, Timezone: "UTC"}).Error)
	for _, siteId := range siteIds {
		require.NoError(t, db.Create(&models.Site{Id: siteId, TenantId: id, Name: siteId}).Error)
	}
}

func seedIncident(t *testing.T, db *gorm.DB, incident models.Incident) models.Incident {
	t.Helper()
	require.NoError(t, db.Create(&incident).Error)
	return incident
}

func loadSummaries(t *testing.T, db *gorm.DB, tenantId string) []models.DailySummary {
	t.Helper()
	var rows []models.DailySummary
	require.NoError(t, db.
		Where("tenant_id = ?", tenantId).
		Order("site_id, incident_type_id, severity").
		Find(&rows).Error)
	return rows
}

func TestDailyAggregation_Idempotent(t *testing.T) {
	db := newTestDB(t)
	seedTenant(t, db, "tenant-1", "site-1")

	occurred := aggDay.Add(9 * time.Hour)
	closed := occurred.Add(48 * time.Hour)
	seedIncident(t, db, models.Incident{
		TenantId: "tenant-1", SiteId: "site-1", IncidentTypeId: 7,
		Severity: models.SeverityHigh, Status: models.IncidentStatusClosed,
		OccurredAt: occurred, ClosedAt: &closed,
	})
	seedIncident(t, db, models.Incident{
		TenantId: "tenant-1", SiteId: "site-1", IncidentTypeId: 7,
		Severity: models.SeverityLow, Status: models.IncidentStatusOpen,
		OccurredAt: occurred,
	})

	service := NewAggregationService(db, NewMetricsSource(db), newTestLogger())
	ctx := context.Background()

	require.NoError(t, service.AggregateTenant(ctx, "tenant-1", aggDay))
	first := loadSummaries(t, db, "tenant-1")

	require.NoError(t, service.AggregateTenant(ctx, "tenant-1", aggDay))
	second := loadSummaries(t, db, "tenant-1")

	require.Len(t, second, len(first))
	for i := range first {
		require.Equal(t, first[i].SiteId, second[i].SiteId)
		require.Equal(t, first[i].Severity, second[i].Severity)
		require.Equal(t, first[i].IncidentCount, second[i].IncidentCount)
		require.Equal(t, first[i].IncidentsClosed, second[i].IncidentsClosed)
		require.True(t, first[i].IncidentResolutionDaysSum.Equal(second[i].IncidentResolutionDaysSum),
			"resolution sum changed between runs: %s vs %s",
			first[i].IncidentResolutionDaysSum, second[i].IncidentResolutionDaysSum)
	}

	// 2 per-site rows (high, low) + 2 tenant-wide rows.
	require.Len(t, first, 4)
	var siteHigh models.DailySummary
	require.NoError(t, db.Where(
		"tenant_id = ? AND site_id = ? AND severity = ?",
		"tenant-1", "site-1", models.SeverityHigh,
	).First(&siteHigh).Error)
	require.Equal(t, 1, siteHigh.IncidentCount)
	require.Equal(t, 1, siteHigh.IncidentsClosed)
	require.True(t, siteHigh.IncidentResolutionDaysSum.IntPart() == 2,
		"expected 2 resolution days, got %s", siteHigh.IncidentResolutionDaysSum)
}

func TestDailyAggregation_AdditiveAcrossDimensions(t *testing.T) {
	db := newTestDB(t)
	seedTenant(t, db, "tenant-1", "site-1")

	occurred := aggDay.Add(10 * time.Hour)
	seedIncident(t, db, models.Incident{
		TenantId: "tenant-1", SiteId: "site-1", IncidentTypeId: 3,
		Severity: models.SeverityMedium, Status: models.IncidentStatusOpen,
		OccurredAt: occurred,
	})

	service := NewAggregationService(db, NewMetricsSource(db), newTestLogger())
	ctx := context.Background()

	// Incidents only: inspection and action columns stay at zero.
	require.NoError(t, service.AggregateTenant(ctx, "tenant-1", aggDay))
	rows := loadSummaries(t, db, "tenant-1")
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, 1, row.IncidentCount)
		require.Zero(t, row.InspectionCount)
		require.Zero(t, row.ActionsCreated)
	}

	// Inspections and actions added for the same day and site. The inspection
	// and action rollups target the same (site, all) key and must accumulate
	// into one row without clobbering each other.
	require.NoError(t, db.Create(&models.Inspection{
		TenantId: "tenant-1", SiteId: "site-1",
		PerformedAt: aggDay.Add(11 * time.Hour), OverallResult: models.InspectionResultFail,
	}).Error)
	incident := seedIncident(t, db, models.Incident{
		TenantId: "tenant-1", SiteId: "site-1", IncidentTypeId: 3,
		Severity: models.SeverityMedium, Status: models.IncidentStatusOpen,
		OccurredAt: aggDay.Add(-30 * 24 * time.Hour),
	})
	require.NoError(t, db.Create(&models.Action{
		SourceType: models.ActionSourceIncident, SourceId: incident.Id,
		Status:    models.ActionStatusOpen,
		CreatedAt: aggDay.Add(12 * time.Hour),
	}).Error)

	require.NoError(t, service.AggregateTenant(ctx, "tenant-1", aggDay))

	var merged models.DailySummary
	require.NoError(t, db.Where(
		"tenant_id = ? AND site_id = ? AND severity = ?",
		"tenant-1", "site-1", models.SeverityAll,
	).First(&merged).Error)
	require.Equal(t, 1, merged.InspectionCount)
	require.Equal(t, 1, merged.InspectionsFailed)
	require.Equal(t, 1, merged.ActionsCreated)
	require.Zero(t, merged.IncidentCount, "incident columns live under their severity rows, not the sentinel row")

	var incidentRow models.DailySummary
	require.NoError(t, db.Where(
		"tenant_id = ? AND site_id = ? AND severity = ?",
		"tenant-1", "site-1", models.SeverityMedium,
	).First(&incidentRow).Error)
	require.Equal(t, 1, incidentRow.IncidentCount)
	require.Zero(t, incidentRow.InspectionCount)
}

// faultySource fails the incident read for one tenant to exercise fault
// isolation.
type faultySource struct {
	MetricsSource
	failTenant string
}

func (s *faultySource) IncidentsOccurred(ctx context.Context, tenantId string, day time.Time) ([]models.Incident, error) {
	if tenantId == s.failTenant {
		return nil, errors.New("simulated read failure")
	}
	return s.MetricsSource.IncidentsOccurred(ctx, tenantId, day)
}

func TestDailyAggregation_PerTenantFaultIsolation(t *testing.T) {
	db := newTestDB(t)
	for _, tenantId := range []string{"tenant-a", "tenant-b", "tenant-c"} {
		seedTenant(t, db, tenantId, tenantId+"-site")
		seedIncident(t, db, models.Incident{
			TenantId: tenantId, SiteId: tenantId + "-site", IncidentTypeId: 1,
			Severity: models.SeverityLow, Status: models.IncidentStatusOpen,
			OccurredAt: aggDay.Add(8 * time.Hour),
		})
	}

	source := &faultySource{MetricsSource: NewMetricsSource(db), failTenant: "tenant-b"}
	service := NewAggregationService(db, source, newTestLogger())

	result, err := service.RunDailyAggregation(context.Background(), aggDay)
	require.NoError(t, err)
	require.Equal(t, 2, result.TenantsProcessed)
	require.Equal(t, 1, result.TenantsFailed)
	require.Len(t, result.Errors, 1)
	require.Equal(t, "tenant-b", result.Errors[0].TenantId)

	require.NotEmpty(t, loadSummaries(t, db, "tenant-a"))
	require.Empty(t, loadSummaries(t, db, "tenant-b"))
	require.NotEmpty(t, loadSummaries(t, db, "tenant-c"))
}

func TestBackfillRange_ProcessesEveryDate(t *testing.T) {
	db := newTestDB(t)
	seedTenant(t, db, "tenant-1", "site-1")

	for dayOffset := 0; dayOffset < 3; dayOffset++ {
		seedIncident(t, db, models.Incident{
			TenantId: "tenant-1", SiteId: "site-1", IncidentTypeId: 1,
			Severity: models.SeverityLow, Status: models.IncidentStatusOpen,
			OccurredAt: aggDay.Add(time.Duration(dayOffset)*24*time.Hour + 6*time.Hour),
		})
	}

	service := NewAggregationService(db, NewMetricsSource(db), newTestLogger())
	result, err := service.BackfillRange(context.Background(), aggDay, aggDay.Add(48*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 3, result.DatesProcessed)
	require.Empty(t, result.Errors)

	for dayOffset := 0; dayOffset < 3; dayOffset++ {
		day := utils.DateOnlyUTC(aggDay.Add(time.Duration(dayOffset) * 24 * time.Hour))
		var count int64
		require.NoError(t, db.Model(&models.DailySummary{}).
			Where("tenant_id = ? AND summary_date = ?", "tenant-1", day).
			Count(&count).Error)
		require.EqualValues(t, 2, count, "expected site + tenant-wide row for day %s", day)
	}
}

package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/safety_backend/config"
	"bitbucket.org/mmdatafocus/safety_backend/models"
	"bitbucket.org/mmdatafocus/safety_backend/utils"
)

// AggregationService rolls the day's incidents, inspections and actions into
// daily_summaries rows, one recompute per (tenant, date).
type AggregationService struct {
	db     *gorm.DB
	source MetricsSource
	logger *logrus.Logger
}

func NewAggregationService(db *gorm.DB, source MetricsSource, logger *logrus.Logger) *AggregationService {
	return &AggregationService{db: db, source: source, logger: logger}
}

type TenantError struct {
	TenantId string `json:"tenantId"`
	Error    string `json:"error"`
}

type AggregationResult struct {
	Date             time.Time     `json:"date"`
	TenantsProcessed int           `json:"tenantsProcessed"`
	TenantsFailed    int           `json:"tenantsFailed"`
	Errors           []TenantError `json:"errors,omitempty"`
}

type BackfillResult struct {
	DatesProcessed int           `json:"datesProcessed"`
	Errors         []TenantError `json:"errors,omitempty"`
}

// RunDailyAggregation recomputes summaries for every active tenant for the
// given day. Per-tenant failures are tallied and do not stop the remaining
// tenants; only a failure to enumerate tenants aborts the run.
func (s *AggregationService) RunDailyAggregation(ctx context.Context, day time.Time) (AggregationResult, error) {
	day = utils.DateOnlyUTC(day)
	result := AggregationResult{Date: day}

	tenants, err := s.source.ActiveTenants(ctx)
	if err != nil {
		config.LogError(s.logger, "Workflow", "RunDailyAggregation", "Failed to list tenants", day, err)
		return result, err
	}

	s.logger.WithFields(logrus.Fields{
		"date":    day.Format("2006-01-02"),
		"tenants": len(tenants),
	}).Info("starting daily aggregation")

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, tenant := range tenants {
		wg.Add(1)
		go func(tenant models.Tenant) {
			defer wg.Done()
			if err := s.AggregateTenant(ctx, tenant.Id, day); err != nil {
				config.LogError(s.logger, "Workflow", "RunDailyAggregation", "Failed to aggregate tenant", tenant.Id, err)
				mu.Lock()
				result.TenantsFailed++
				result.Errors = append(result.Errors, TenantError{TenantId: tenant.Id, Error: err.Error()})
				mu.Unlock()
				return
			}
			mu.Lock()
			result.TenantsProcessed++
			mu.Unlock()
		}(tenant)
	}
	wg.Wait()

	s.logger.WithFields(logrus.Fields{
		"date":      day.Format("2006-01-02"),
		"processed": result.TenantsProcessed,
		"failed":    result.TenantsFailed,
	}).Info("completed daily aggregation")
	return result, nil
}

// AggregateTenant recomputes one tenant's summaries for one day. The three
// dimension rollups are computed concurrently; the delete and the upserts run
// inside a single transaction, serialized across instances by an advisory lock,
// so readers never observe the deleted-but-not-reinserted state.
func (s *AggregationService) AggregateTenant(ctx context.Context, tenantId string, day time.Time) error {
	day = utils.DateOnlyUTC(day)

	var incidentUpserts, inspectionUpserts, actionUpserts []summaryUpsert
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		incidents, err := s.source.IncidentsOccurred(gctx, tenantId, day)
		if err != nil {
			return err
		}
		incidentUpserts = incidentRollups(tenantId, day, incidents)
		return nil
	})
	g.Go(func() error {
		inspections, err := s.source.InspectionsPerformed(gctx, tenantId, day)
		if err != nil {
			return err
		}
		inspectionUpserts = inspectionRollups(tenantId, day, inspections)
		return nil
	})
	g.Go(func() error {
		rollups, err := s.source.ActionDayRollups(gctx, tenantId, day)
		if err != nil {
			return err
		}
		actionUpserts = actionRollups(tenantId, day, rollups)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireSummaryLock(tx, tenantId, day); err != nil {
			return err
		}
		defer ReleaseSummaryLock(tx, tenantId, day)

		// Delete-then-reinsert keeps recomputation idempotent.
		err := tx.Where("tenant_id = ? AND summary_date = ?", tenantId, day).
			Delete(&models.DailySummary{}).Error
		if err != nil {
			return err
		}

		for _, upserts := range [][]summaryUpsert{incidentUpserts, inspectionUpserts, actionUpserts} {
			for _, u := range upserts {
				if err := upsertSummary(tx, u); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// BackfillRange repeats the daily procedure for every date in the inclusive
// range, sequentially. A failed date is recorded and does not stop later dates.
func (s *AggregationService) BackfillRange(ctx context.Context, start, end time.Time) (BackfillResult, error) {
	start = utils.DateOnlyUTC(start)
	end = utils.DateOnlyUTC(end)
	result := BackfillResult{}

	for day := start; !day.After(end); day = day.Add(24 * time.Hour) {
		runResult, err := s.RunDailyAggregation(ctx, day)
		if err != nil {
			result.Errors = append(result.Errors, TenantError{Error: day.Format("2006-01-02") + ": " + err.Error()})
			continue
		}
		result.DatesProcessed++
		result.Errors = append(result.Errors, runResult.Errors...)
	}

	s.logger.WithFields(logrus.Fields{
		"start":     start.Format("2006-01-02"),
		"end":       end.Format("2006-01-02"),
		"processed": result.DatesProcessed,
		"errors":    len(result.Errors),
	}).Info("backfill completed")
	return result, nil
}

// summaryUpsert is one sparse rollup row: the insert payload plus the column
// set this dimension owns, for the additive conflict clause.
type summaryUpsert struct {
	row     models.DailySummary
	columns map[string]any
}

var summaryKeyColumns = []clause.Column{
	{Name: "tenant_id"}, {Name: "site_id"}, {Name: "summary_date"},
	{Name: "incident_type_id"}, {Name: "severity"},
}

// upsertSummary merges one rollup into its summary row. On conflict each owned
// column is set to COALESCE(existing, 0) + incoming, which lets independently
// computed dimensions accumulate into the same row without a read-modify-write
// race.
func upsertSummary(tx *gorm.DB, u summaryUpsert) error {
	assignments := map[string]any{"updated_at": time.Now().UTC()}
	for col, val := range u.columns {
		assignments[col] = gorm.Expr("COALESCE("+col+", 0) + ?", val)
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   summaryKeyColumns,
		DoUpdates: clause.Assignments(assignments),
	}).Create(&u.row).Error
}

type incidentKey struct {
	siteId   string
	typeId   int
	severity models.Severity
}

func incidentRollups(tenantId string, day time.Time, incidents []models.Incident) []summaryUpsert {
	type tally struct {
		count          int
		closed         int
		resolutionDays decimal.Decimal
	}
	perSite := map[incidentKey]*tally{}
	tenantWide := map[models.Severity]*tally{}

	bump := func(t *tally, incident models.Incident) {
		t.count++
		if incident.Status == models.IncidentStatusClosed && incident.ClosedAt != nil {
			t.closed++
			days := decimal.NewFromFloat(incident.ClosedAt.Sub(incident.OccurredAt).Hours() / 24)
			t.resolutionDays = t.resolutionDays.Add(days)
		}
	}
	for _, incident := range incidents {
		key := incidentKey{siteId: incident.SiteId, typeId: incident.IncidentTypeId, severity: incident.Severity}
		if perSite[key] == nil {
			perSite[key] = &tally{}
		}
		bump(perSite[key], incident)
		if tenantWide[incident.Severity] == nil {
			tenantWide[incident.Severity] = &tally{}
		}
		bump(tenantWide[incident.Severity], incident)
	}

	var upserts []summaryUpsert
	build := func(key incidentKey, t *tally) summaryUpsert {
		return summaryUpsert{
			row: models.DailySummary{
				TenantId:                  tenantId,
				SiteId:                    key.siteId,
				SummaryDate:               day,
				IncidentTypeId:            key.typeId,
				Severity:                  key.severity,
				IncidentCount:             t.count,
				IncidentsClosed:           t.closed,
				IncidentResolutionDaysSum: t.resolutionDays,
			},
			columns: map[string]any{
				"incident_count":               t.count,
				"incidents_closed":             t.closed,
				"incident_resolution_days_sum": t.resolutionDays,
			},
		}
	}
	for key, t := range perSite {
		upserts = append(upserts, build(key, t))
	}
	for severity, t := range tenantWide {
		upserts = append(upserts, build(incidentKey{siteId: models.NilSiteId, typeId: 0, severity: severity}, t))
	}
	sortUpserts(upserts)
	return upserts
}

func inspectionRollups(tenantId string, day time.Time, inspections []models.Inspection) []summaryUpsert {
	type tally struct {
		count  int
		passed int
		failed int
	}
	perSite := map[string]*tally{}
	tenantWide := &tally{}

	bump := func(t *tally, inspection models.Inspection) {
		t.count++
		switch inspection.OverallResult {
		case models.InspectionResultPass:
			t.passed++
		case models.InspectionResultFail:
			t.failed++
		}
	}
	for _, inspection := range inspections {
		if perSite[inspection.SiteId] == nil {
			perSite[inspection.SiteId] = &tally{}
		}
		bump(perSite[inspection.SiteId], inspection)
		bump(tenantWide, inspection)
	}

	var upserts []summaryUpsert
	build := func(siteId string, t *tally) summaryUpsert {
		return summaryUpsert{
			row: models.DailySummary{
				TenantId:          tenantId,
				SiteId:            siteId,
				SummaryDate:       day,
				IncidentTypeId:    0,
				Severity:          models.SeverityAll,
				InspectionCount:   t.count,
				InspectionsPassed: t.passed,
				InspectionsFailed: t.failed,
			},
			columns: map[string]any{
				"inspection_count":   t.count,
				"inspections_passed": t.passed,
				"inspections_failed": t.failed,
			},
		}
	}
	for siteId, t := range perSite {
		upserts = append(upserts, build(siteId, t))
	}
	if tenantWide.count > 0 {
		upserts = append(upserts, build(models.NilSiteId, tenantWide))
	}
	sortUpserts(upserts)
	return upserts
}

func actionRollups(tenantId string, day time.Time, rollups []ActionDayCounts) []summaryUpsert {
	var upserts []summaryUpsert
	tenantWide := ActionDayCounts{SiteId: models.NilSiteId}

	build := func(c ActionDayCounts) summaryUpsert {
		return summaryUpsert{
			row: models.DailySummary{
				TenantId:         tenantId,
				SiteId:           c.SiteId,
				SummaryDate:      day,
				IncidentTypeId:   0,
				Severity:         models.SeverityAll,
				ActionsCreated:   c.Created,
				ActionsCompleted: c.Completed,
				ActionsOverdue:   c.Overdue,
			},
			columns: map[string]any{
				"actions_created":   c.Created,
				"actions_completed": c.Completed,
				"actions_overdue":   c.Overdue,
			},
		}
	}
	for _, c := range rollups {
		if c.Created == 0 && c.Completed == 0 && c.Overdue == 0 {
			continue
		}
		upserts = append(upserts, build(c))
		tenantWide.Created += c.Created
		tenantWide.Completed += c.Completed
		tenantWide.Overdue += c.Overdue
	}
	if tenantWide.Created > 0 || tenantWide.Completed > 0 || tenantWide.Overdue > 0 {
		upserts = append(upserts, build(tenantWide))
	}
	sortUpserts(upserts)
	return upserts
}

func sortUpserts(upserts []summaryUpsert) {
	sort.Slice(upserts, func(i, j int) bool {
		a, b := upserts[i].row, upserts[j].row
		if a.SiteId != b.SiteId {
			return a.SiteId < b.SiteId
		}
		if a.IncidentTypeId != b.IncidentTypeId {
			return a.IncidentTypeId < b.IncidentTypeId
		}
		return a.Severity < b.Severity
	})
}

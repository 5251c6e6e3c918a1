package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/safety_backend/config"
	"bitbucket.org/mmdatafocus/safety_backend/models"
	"bitbucket.org/mmdatafocus/safety_backend/utils"
)

// RiskScoreService recomputes every site's current risk score from the rolling
// window and snapshots it into the per-day history table.
type RiskScoreService struct {
	db     *gorm.DB
	source MetricsSource
	logger *logrus.Logger
}

func NewRiskScoreService(db *gorm.DB, source MetricsSource, logger *logrus.Logger) *RiskScoreService {
	return &RiskScoreService{db: db, source: source, logger: logger}
}

type ScoringResult struct {
	TenantsProcessed int           `json:"tenantsProcessed"`
	TenantsSkipped   int           `json:"tenantsSkipped"`
	SitesScored      int           `json:"sitesScored"`
	SitesFailed      int           `json:"sitesFailed"`
	Errors           []TenantError `json:"errors,omitempty"`
}

// RunScoring scores every site of every active tenant. Tenants with scoring
// disabled are skipped, not failed. Per-site failures are tallied and do not
// stop the rest of the tenant nor other tenants.
func (s *RiskScoreService) RunScoring(ctx context.Context, now time.Time) (ScoringResult, error) {
	result := ScoringResult{}

	tenants, err := s.source.ActiveTenants(ctx)
	if err != nil {
		config.LogError(s.logger, "Workflow", "RunScoring", "Failed to list tenants", nil, err)
		return result, err
	}

	for _, tenant := range tenants {
		scored, failed, errs, skipped := s.scoreTenant(ctx, tenant, now)
		if skipped {
			result.TenantsSkipped++
			continue
		}
		result.TenantsProcessed++
		result.SitesScored += scored
		result.SitesFailed += failed
		result.Errors = append(result.Errors, errs...)
	}

	s.logger.WithFields(logrus.Fields{
		"tenants": result.TenantsProcessed,
		"skipped": result.TenantsSkipped,
		"scored":  result.SitesScored,
		"failed":  result.SitesFailed,
	}).Info("completed risk scoring")
	return result, nil
}

func (s *RiskScoreService) scoreTenant(ctx context.Context, tenant models.Tenant, now time.Time) (scored int, failed int, errs []TenantError, skipped bool) {
	settings := models.ParseScoringSettings(tenant.RiskSettings)
	if !settings.Enabled {
		s.logger.WithFields(logrus.Fields{"tenantId": tenant.Id}).Info("risk scoring disabled for tenant; skipping")
		return 0, 0, nil, true
	}

	sites, err := s.source.TenantSites(ctx, tenant.Id)
	if err != nil {
		config.LogError(s.logger, "Workflow", "scoreTenant", "Failed to list sites", tenant.Id, err)
		return 0, 0, []TenantError{{TenantId: tenant.Id, Error: err.Error()}}, false
	}

	since := now.Add(-time.Duration(settings.ScoringWindowDays) * 24 * time.Hour)
	for _, site := range sites {
		if err := s.ScoreSite(ctx, tenant, site.Id, settings, since, now); err != nil {
			config.LogError(s.logger, "Workflow", "scoreTenant", "Failed to score site", site.Id, err)
			failed++
			errs = append(errs, TenantError{TenantId: tenant.Id, Error: fmt.Sprintf("site %s: %s", site.Id, err.Error())})
			continue
		}
		scored++
	}
	return scored, failed, errs, false
}

// ScoreSite computes and persists one site's assessment: the current row is
// replaced in place, and the day's history row is written (overwriting an
// earlier run from the same day).
func (s *RiskScoreService) ScoreSite(ctx context.Context, tenant models.Tenant, siteId string, settings models.ScoringSettings, since, now time.Time) error {
	counts, err := s.source.SiteRiskCounts(ctx, tenant.Id, siteId, since, now)
	if err != nil {
		return err
	}
	assessment := ComputeRiskScore(counts, settings, now)

	current := models.SiteRiskScore{
		TenantId:          tenant.Id,
		SiteId:            siteId,
		RiskScore:         assessment.Score,
		RiskCategory:      assessment.Category,
		IncidentScore:     assessment.IncidentScore,
		ActionScore:       assessment.ActionScore,
		InspectionScore:   assessment.InspectionScore,
		IncidentsCritical: counts.IncidentsCritical,
		IncidentsHigh:     counts.IncidentsHigh,
		IncidentsMedium:   counts.IncidentsMedium,
		IncidentsLow:      counts.IncidentsLow,
		OverdueActions:    counts.OverdueActions,
		FailedInspections: counts.FailedInspections,
		PrimaryFactor:     assessment.PrimaryFactor,
		ScoringWindowDays: assessment.WindowDays,
		CalculatedAt:      assessment.CalculatedAt,
	}

	recordedDate, err := utils.ConvertToDate(now, tenant.Timezone)
	if err != nil {
		recordedDate = utils.DateOnlyUTC(now)
	}
	history := models.SiteRiskScoreHistory{
		TenantId:     tenant.Id,
		SiteId:       siteId,
		RecordedDate: recordedDate,
		RiskScore:    assessment.Score,
		RiskCategory: assessment.Category,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "site_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"risk_score", "risk_category",
				"incident_score", "action_score", "inspection_score",
				"incidents_critical", "incidents_high", "incidents_medium", "incidents_low",
				"overdue_actions", "failed_inspections",
				"primary_factor", "scoring_window_days", "calculated_at", "updated_at",
			}),
		}).Create(&current).Error
		if err != nil {
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "site_id"}, {Name: "recorded_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"risk_score", "risk_category", "updated_at"}),
		}).Create(&history).Error
	})
}

package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/safety_backend/config"
	"bitbucket.org/mmdatafocus/safety_backend/models"
)

// Job names, referenced by the manual-trigger surface and the ledger.
const (
	JobAnalyticsAggregation = "analytics_aggregation"
	JobRiskScoreCalculation = "risk_score_calculation"
	JobRiskHistoryCleanup   = "risk_history_cleanup"
	JobRetentionCleanup     = "retention_cleanup"
)

const (
	JobFamilyAnalytics = "analytics"
	JobFamilyCore      = "core"
)

// RegisterPipelineJobs binds the four batch jobs to their schedules. The
// analytics family (aggregation, scoring, history cleanup) shares a family
// flag beneath the master switch; retention cleanup is gated by the master
// switch only.
func RegisterPipelineJobs(s *Scheduler, aggregation *AggregationService, scoring *RiskScoreService, cleanup *CleanupService) error {
	definitions := []JobDefinition{
		{
			Name:    JobAnalyticsAggregation,
			Family:  JobFamilyAnalytics,
			Spec:    config.CronAnalyticsAggregation(),
			Enabled: config.AnalyticsJobsEnabled,
			Handler: aggregationHandler(aggregation),
		},
		{
			Name:    JobRiskScoreCalculation,
			Family:  JobFamilyAnalytics,
			Spec:    config.CronRiskScoreCalculation(),
			Enabled: config.AnalyticsJobsEnabled,
			Handler: scoringHandler(scoring),
		},
		{
			Name:    JobRiskHistoryCleanup,
			Family:  JobFamilyAnalytics,
			Spec:    config.CronRiskHistoryCleanup(),
			Enabled: config.AnalyticsJobsEnabled,
			Handler: riskHistoryCleanupHandler(cleanup),
		},
		{
			Name:    JobRetentionCleanup,
			Family:  JobFamilyCore,
			Spec:    config.CronRetentionCleanup(),
			Handler: retentionCleanupHandler(cleanup),
		},
	}
	for _, def := range definitions {
		if err := s.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// aggregationHandler rolls up yesterday's records. A manual trigger with a
// tenant scope recomputes only that tenant; the scheduled run covers all
// active tenants, and per-tenant failures are reported through the counters
// and metadata rather than failing the run.
func aggregationHandler(aggregation *AggregationService) JobHandler {
	return func(ctx context.Context, run *models.JobRun) (RunCounters, any, error) {
		day := time.Now().UTC().Add(-24 * time.Hour)

		if run.TenantId != nil && *run.TenantId != "" {
			if err := aggregation.AggregateTenant(ctx, *run.TenantId, day); err != nil {
				return RunCounters{Processed: 1, Failed: 1}, nil, err
			}
			return RunCounters{Processed: 1, Succeeded: 1}, nil, nil
		}

		result, err := aggregation.RunDailyAggregation(ctx, day)
		counters := RunCounters{
			Processed: result.TenantsProcessed + result.TenantsFailed,
			Succeeded: result.TenantsProcessed,
			Failed:    result.TenantsFailed,
		}
		if err != nil {
			return counters, nil, err
		}
		return counters, result, nil
	}
}

func scoringHandler(scoring *RiskScoreService) JobHandler {
	return func(ctx context.Context, run *models.JobRun) (RunCounters, any, error) {
		result, err := scoring.RunScoring(ctx, time.Now().UTC())
		counters := RunCounters{
			Processed: result.SitesScored + result.SitesFailed,
			Succeeded: result.SitesScored,
			Failed:    result.SitesFailed,
		}
		if err != nil {
			return counters, nil, err
		}
		return counters, result, nil
	}
}

func riskHistoryCleanupHandler(cleanup *CleanupService) JobHandler {
	return func(ctx context.Context, run *models.JobRun) (RunCounters, any, error) {
		deleted, err := cleanup.CleanupRiskHistory(ctx, time.Now().UTC(), config.RiskHistoryRetentionDays())
		if err != nil {
			return RunCounters{}, nil, err
		}
		counters := RunCounters{Processed: int(deleted), Succeeded: int(deleted)}
		return counters, map[string]int64{"historyRowsDeleted": deleted}, nil
	}
}

func retentionCleanupHandler(cleanup *CleanupService) JobHandler {
	return func(ctx context.Context, run *models.JobRun) (RunCounters, any, error) {
		now := time.Now().UTC()
		summariesDeleted, err := cleanup.CleanupDailySummaries(ctx, now, config.SummaryRetentionDays())
		if err != nil {
			return RunCounters{}, nil, err
		}
		runsDeleted, err := cleanup.CleanupJobRuns(ctx, now, config.JobRunRetentionDays())
		if err != nil {
			return RunCounters{Processed: int(summariesDeleted), Succeeded: int(summariesDeleted)}, nil, err
		}
		total := summariesDeleted + runsDeleted
		counters := RunCounters{Processed: int(total), Succeeded: int(total)}
		return counters, map[string]int64{
			"summaryRowsDeleted": summariesDeleted,
			"jobRunRowsDeleted":  runsDeleted,
		}, nil
	}
}

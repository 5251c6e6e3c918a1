package config

import (
	"os"
	"strings"
	"time"
)

// Job scheduling and retention knobs. Everything has a sane default so the
// service runs with an empty environment.

func cronFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func boolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// CronAnalyticsAggregation is the schedule for the daily summary rollup.
// Set via env:
// - CRON_ANALYTICS_AGGREGATION="0 2 * * *"
func CronAnalyticsAggregation() string {
	return cronFromEnv("CRON_ANALYTICS_AGGREGATION", "0 2 * * *")
}

// CronRiskScoreCalculation runs after aggregation so scores see fresh summaries.
func CronRiskScoreCalculation() string {
	return cronFromEnv("CRON_RISK_SCORE_CALCULATION", "0 3 * * *")
}

// CronRiskHistoryCleanup prunes risk score history monthly.
func CronRiskHistoryCleanup() string {
	return cronFromEnv("CRON_RISK_HISTORY_CLEANUP", "0 4 1 * *")
}

// CronRetentionCleanup prunes expired daily summaries and job run rows.
func CronRetentionCleanup() string {
	return cronFromEnv("CRON_RETENTION_CLEANUP", "0 2 * * *")
}

// JobsEnabled is the master switch for the scheduler. When false no job fires,
// scheduled or manually triggered.
//
// Set via env:
// - JOBS_ENABLED=false
func JobsEnabled() bool {
	return boolFromEnv("JOBS_ENABLED", true)
}

// AnalyticsJobsEnabled gates the analytics job family (aggregation, risk
// scoring, risk history cleanup) beneath the master switch.
//
// Set via env:
// - ANALYTICS_JOBS_ENABLED=false
func AnalyticsJobsEnabled() bool {
	return boolFromEnv("ANALYTICS_JOBS_ENABLED", true)
}

// RiskScoringWindowDays is the deployment-wide default rolling window, used
// when a tenant's settings do not override it.
func RiskScoringWindowDays() int {
	return intFromEnv("RISK_SCORING_WINDOW_DAYS", 90)
}

// SummaryRetentionDays bounds how far back daily_summaries rows are kept.
func SummaryRetentionDays() int {
	return intFromEnv("SUMMARY_RETENTION_DAYS", 730)
}

// RiskHistoryRetentionDays bounds site_risk_score_history.
func RiskHistoryRetentionDays() int {
	return intFromEnv("RISK_HISTORY_RETENTION_DAYS", 365)
}

// JobRunRetentionDays bounds the job_runs ledger.
func JobRunRetentionDays() int {
	return intFromEnv("JOB_RUN_RETENTION_DAYS", 30)
}

// JobStaleRunningThreshold is how long a job_runs row may stay "running" before
// the startup sweep marks it failed.
func JobStaleRunningThreshold() time.Duration {
	return time.Duration(intFromEnv("JOB_STALE_RUNNING_HOURS", 24)) * time.Hour
}

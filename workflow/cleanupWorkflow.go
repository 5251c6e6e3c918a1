package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/safety_backend/models"
	"bitbucket.org/mmdatafocus/safety_backend/utils"
)

// CleanupService hard-deletes aggregate and ledger rows older than their
// retention horizons. Everything it removes is derived data or operational
// logging; source records are never touched.
type CleanupService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewCleanupService(db *gorm.DB, logger *logrus.Logger) *CleanupService {
	return &CleanupService{db: db, logger: logger}
}

func retentionCutoff(now time.Time, retentionDays int) (time.Time, error) {
	if retentionDays <= 0 {
		return time.Time{}, errors.New("retention days must be positive")
	}
	return utils.DateOnlyUTC(now).Add(-time.Duration(retentionDays) * 24 * time.Hour), nil
}

func (c *CleanupService) logDeleted(table string, deleted int64, cutoff time.Time) {
	c.logger.WithFields(logrus.Fields{
		"table":   table,
		"deleted": deleted,
		"cutoff":  cutoff.Format("2006-01-02"),
	}).Info("retention cleanup")
}

// CleanupDailySummaries removes summary rows with a summary_date before the
// horizon. Rows exactly at the horizon are kept.
func (c *CleanupService) CleanupDailySummaries(ctx context.Context, now time.Time, retentionDays int) (int64, error) {
	cutoff, err := retentionCutoff(now, retentionDays)
	if err != nil {
		return 0, err
	}
	result := c.db.WithContext(ctx).
		Where("summary_date < ?", cutoff).
		Delete(&models.DailySummary{})
	if result.Error != nil {
		return 0, result.Error
	}
	c.logDeleted("daily_summaries", result.RowsAffected, cutoff)
	return result.RowsAffected, nil
}

func (c *CleanupService) CleanupRiskHistory(ctx context.Context, now time.Time, retentionDays int) (int64, error) {
	cutoff, err := retentionCutoff(now, retentionDays)
	if err != nil {
		return 0, err
	}
	result := c.db.WithContext(ctx).
		Where("recorded_date < ?", cutoff).
		Delete(&models.SiteRiskScoreHistory{})
	if result.Error != nil {
		return 0, result.Error
	}
	c.logDeleted("site_risk_score_history", result.RowsAffected, cutoff)
	return result.RowsAffected, nil
}

// CleanupJobRuns prunes old ledger rows. Rows still "running" are left for the
// stale-run sweep; only terminal rows are deleted.
func (c *CleanupService) CleanupJobRuns(ctx context.Context, now time.Time, retentionDays int) (int64, error) {
	cutoff, err := retentionCutoff(now, retentionDays)
	if err != nil {
		return 0, err
	}
	result := c.db.WithContext(ctx).
		Where("started_at < ? AND status IN ?", cutoff,
			[]models.JobRunStatus{models.JobRunStatusCompleted, models.JobRunStatusFailed}).
		Delete(&models.JobRun{})
	if result.Error != nil {
		return 0, result.Error
	}
	c.logDeleted("job_runs", result.RowsAffected, cutoff)
	return result.RowsAffected, nil
}

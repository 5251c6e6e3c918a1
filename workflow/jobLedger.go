package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/safety_backend/config"
	"bitbucket.org/mmdatafocus/safety_backend/models"
)

// JobLedger is the bookkeeping layer around job_runs: open a row before work
// begins, close it exactly once after. It is a logging sink, not a coordination
// primitive; overlap prevention lives in the scheduler's job lock.
type JobLedger struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewJobLedger(db *gorm.DB, logger *logrus.Logger) *JobLedger {
	return &JobLedger{db: db, logger: logger}
}

type RunCounters struct {
	Processed int
	Succeeded int
	Failed    int
}

func marshalMetadata(metadata any) (datatypes.JSON, error) {
	if metadata == nil {
		return nil, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (l *JobLedger) StartRun(ctx context.Context, jobName string, tenantId *string, metadata any) (*models.JobRun, error) {
	raw, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	run := &models.JobRun{
		JobName:   jobName,
		TenantId:  tenantId,
		Status:    models.JobRunStatusRunning,
		StartedAt: time.Now().UTC(),
		Metadata:  raw,
	}
	if err := l.db.WithContext(ctx).Create(run).Error; err != nil {
		config.LogError(l.logger, "Workflow", "StartRun", "Failed to open job run", jobName, err)
		return nil, err
	}
	return run, nil
}

// closeRun performs the single terminal transition. The status guard in the
// WHERE clause is what makes the state machine monotonic: a row that already
// reached completed or failed is never rewritten.
func (l *JobLedger) closeRun(ctx context.Context, run *models.JobRun, status models.JobRunStatus, counters RunCounters, errorMessage *string, metadata any) error {
	updates := map[string]any{
		"status":          status,
		"completed_at":    time.Now().UTC(),
		"items_processed": counters.Processed,
		"items_succeeded": counters.Succeeded,
		"items_failed":    counters.Failed,
		"error_message":   errorMessage,
	}
	if metadata != nil {
		raw, err := marshalMetadata(metadata)
		if err != nil {
			return err
		}
		updates["metadata"] = raw
	}

	result := l.db.WithContext(ctx).
		Model(&models.JobRun{}).
		Where("id = ? AND status = ?", run.Id, models.JobRunStatusRunning).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job run %d is not running; refusing to transition to %s", run.Id, status)
	}
	return nil
}

func (l *JobLedger) CompleteRun(ctx context.Context, run *models.JobRun, counters RunCounters, metadata any) error {
	return l.closeRun(ctx, run, models.JobRunStatusCompleted, counters, nil, metadata)
}

func (l *JobLedger) FailRun(ctx context.Context, run *models.JobRun, runErr error, counters RunCounters) error {
	message := "unknown error"
	if runErr != nil {
		message = runErr.Error()
	}
	return l.closeRun(ctx, run, models.JobRunStatusFailed, counters, &message, nil)
}

// ReapStaleRuns fails any run left "running" longer than the staleness
// threshold. A crashed process cannot close its own row, so this sweep runs
// once at startup.
func (l *JobLedger) ReapStaleRuns(ctx context.Context, threshold time.Duration) (int64, error) {
	if threshold <= 0 {
		return 0, errors.New("stale threshold must be positive")
	}
	cutoff := time.Now().UTC().Add(-threshold)
	message := fmt.Sprintf("marked failed by startup sweep: still running after %s", threshold)

	result := l.db.WithContext(ctx).
		Model(&models.JobRun{}).
		Where("status = ? AND started_at < ?", models.JobRunStatusRunning, cutoff).
		Updates(map[string]any{
			"status":        models.JobRunStatusFailed,
			"completed_at":  time.Now().UTC(),
			"error_message": message,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		l.logger.WithFields(logrus.Fields{
			"reaped": result.RowsAffected,
			"cutoff": cutoff,
		}).Warn("reaped stale running job runs")
	}
	return result.RowsAffected, nil
}

type RunFilter struct {
	JobName  string
	Status   models.JobRunStatus
	TenantId string
	Limit    int
}

// RecentRuns lists ledger rows newest-first for the operational surface.
func (l *JobLedger) RecentRuns(ctx context.Context, filter RunFilter) ([]models.JobRun, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := l.db.WithContext(ctx).Model(&models.JobRun{}).Order("started_at DESC").Limit(limit)
	if filter.JobName != "" {
		query = query.Where("job_name = ?", filter.JobName)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.TenantId != "" {
		query = query.Where("tenant_id = ?", filter.TenantId)
	}

	var runs []models.JobRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

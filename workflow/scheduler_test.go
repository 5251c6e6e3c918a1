package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bitbucket.org/mmdatafocus/safety_backend/config"
	"bitbucket.org/mmdatafocus/safety_backend/models"
)

func newTestScheduler(t *testing.T) (*Scheduler, *JobLedger) {
	t.Helper()
	db := newTestDB(t)
	ledger := NewJobLedger(db, newTestLogger())
	logger := newTestLogger()
	return NewScheduler(ledger, NewLogNotifier(logger), logger), ledger
}

func noopHandler(counters RunCounters) JobHandler {
	return func(ctx context.Context, run *models.JobRun) (RunCounters, any, error) {
		return counters, nil, nil
	}
}

func runStatus(t *testing.T, ledger *JobLedger, runId int) models.JobRun {
	t.Helper()
	var stored models.JobRun
	require.NoError(t, ledger.db.First(&stored, runId).Error)
	return stored
}

func TestScheduler_RegisterAndIntrospect(t *testing.T) {
	scheduler, _ := newTestScheduler(t)

	require.NoError(t, scheduler.Register(JobDefinition{
		Name: "job-a", Family: "analytics", Spec: "0 2 * * *", Handler: noopHandler(RunCounters{}),
	}))
	require.NoError(t, scheduler.Register(JobDefinition{
		Name: "job-b", Family: "core", Spec: "0 4 1 * *", Handler: noopHandler(RunCounters{}),
	}))

	// Duplicate names and bad specs are rejected.
	require.Error(t, scheduler.Register(JobDefinition{
		Name: "job-a", Spec: "0 2 * * *", Handler: noopHandler(RunCounters{}),
	}))
	require.Error(t, scheduler.Register(JobDefinition{
		Name: "job-c", Spec: "not a cron spec", Handler: noopHandler(RunCounters{}),
	}))

	jobs := scheduler.Jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, "job-a", jobs[0].Name)
	require.Equal(t, "0 2 * * *", jobs[0].Schedule)
	require.True(t, jobs[0].Enabled)
	require.Equal(t, "job-b", jobs[1].Name)
}

func TestScheduler_TriggerRunsAsynchronously(t *testing.T) {
	scheduler, ledger := newTestScheduler(t)

	release := make(chan struct{})
	require.NoError(t, scheduler.Register(JobDefinition{
		Name: "slow-job", Spec: "0 2 * * *",
		Handler: func(ctx context.Context, run *models.JobRun) (RunCounters, any, error) {
			<-release
			return RunCounters{Processed: 3, Succeeded: 3}, map[string]string{"phase": "done"}, nil
		},
	}))

	tenant := "tenant-1"
	run, err := scheduler.Trigger(context.Background(), "slow-job", &tenant)
	require.NoError(t, err)
	require.NotZero(t, run.Id)
	require.Equal(t, models.JobRunStatusRunning, runStatus(t, ledger, run.Id).Status)
	require.NotNil(t, run.TenantId)

	close(release)
	require.Eventually(t, func() bool {
		return runStatus(t, ledger, run.Id).Status == models.JobRunStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	stored := runStatus(t, ledger, run.Id)
	require.Equal(t, 3, stored.ItemsProcessed)
	require.Contains(t, string(stored.Metadata), "done")
}

func TestScheduler_TriggerUnknownJob(t *testing.T) {
	scheduler, _ := newTestScheduler(t)
	_, err := scheduler.Trigger(context.Background(), "no-such-job", nil)
	require.Error(t, err)
}

func TestScheduler_HandlerErrorFailsRun(t *testing.T) {
	scheduler, ledger := newTestScheduler(t)
	require.NoError(t, scheduler.Register(JobDefinition{
		Name: "broken-job", Spec: "0 2 * * *",
		Handler: func(ctx context.Context, run *models.JobRun) (RunCounters, any, error) {
			return RunCounters{Processed: 1, Failed: 1}, nil, errors.New("source unreachable")
		},
	}))

	run, err := scheduler.Trigger(context.Background(), "broken-job", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return runStatus(t, ledger, run.Id).Status == models.JobRunStatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	stored := runStatus(t, ledger, run.Id)
	require.NotNil(t, stored.ErrorMessage)
	require.Equal(t, "source unreachable", *stored.ErrorMessage)
	require.Equal(t, 1, stored.ItemsFailed)
}

func TestScheduler_PanicFailsRunWithoutCrashing(t *testing.T) {
	scheduler, ledger := newTestScheduler(t)
	require.NoError(t, scheduler.Register(JobDefinition{
		Name: "panicky-job", Spec: "0 2 * * *",
		Handler: func(ctx context.Context, run *models.JobRun) (RunCounters, any, error) {
			panic("nil map write")
		},
	}))

	run, err := scheduler.Trigger(context.Background(), "panicky-job", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return runStatus(t, ledger, run.Id).Status == models.JobRunStatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	stored := runStatus(t, ledger, run.Id)
	require.NotNil(t, stored.ErrorMessage)
	require.Contains(t, *stored.ErrorMessage, "nil map write")
}

func TestScheduler_MasterSwitchDisablesTrigger(t *testing.T) {
	t.Setenv("JOBS_ENABLED", "false")
	scheduler, _ := newTestScheduler(t)
	require.NoError(t, scheduler.Register(JobDefinition{
		Name: "job-a", Spec: "0 2 * * *", Handler: noopHandler(RunCounters{}),
	}))

	_, err := scheduler.Trigger(context.Background(), "job-a", nil)
	require.Error(t, err)
	require.False(t, scheduler.Jobs()[0].Enabled)
}

func TestScheduler_FamilyFlagGatesOnlyItsFamily(t *testing.T) {
	t.Setenv("ANALYTICS_JOBS_ENABLED", "false")
	scheduler, _ := newTestScheduler(t)

	require.NoError(t, scheduler.Register(JobDefinition{
		Name: "analytics-job", Family: JobFamilyAnalytics, Spec: "0 2 * * *",
		Enabled: config.AnalyticsJobsEnabled, Handler: noopHandler(RunCounters{}),
	}))
	require.NoError(t, scheduler.Register(JobDefinition{
		Name: "core-job", Family: JobFamilyCore, Spec: "0 2 * * *",
		Handler: noopHandler(RunCounters{}),
	}))

	jobs := scheduler.Jobs()
	require.Equal(t, "analytics-job", jobs[0].Name)
	require.False(t, jobs[0].Enabled)
	require.Equal(t, "core-job", jobs[1].Name)
	require.True(t, jobs[1].Enabled)

	_, err := scheduler.Trigger(context.Background(), "analytics-job", nil)
	require.Error(t, err)
	_, err = scheduler.Trigger(context.Background(), "core-job", nil)
	require.NoError(t, err)
}

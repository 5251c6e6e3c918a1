package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"bitbucket.org/mmdatafocus/safety_backend/config"
	"bitbucket.org/mmdatafocus/safety_backend/models"
)

// JobHandler is one job's body. It receives the already-opened ledger row (for
// tenant scope on manual triggers) and returns the outcome counters plus an
// optional diagnostic payload stored in the row's metadata.
type JobHandler func(ctx context.Context, run *models.JobRun) (RunCounters, any, error)

// JobDefinition binds a named job to its cron schedule. Enabled is evaluated at
// every firing so flags can be flipped without a restart; a nil Enabled means
// gated by the master switch only.
type JobDefinition struct {
	Name    string
	Family  string
	Spec    string
	Enabled func() bool
	Handler JobHandler
}

type registeredJob struct {
	def     JobDefinition
	entryId cron.EntryID
}

// Scheduler owns the cron timers and the run-wrapping around every firing:
// ledger row, cross-replica overlap lock, panic recovery, tracing and outcome
// notification. One instance per process, constructed in main and stopped on
// shutdown.
type Scheduler struct {
	cron     *cron.Cron
	ledger   *JobLedger
	notifier JobNotifier
	logger   *logrus.Logger

	mu   sync.Mutex
	jobs map[string]*registeredJob
}

func NewScheduler(ledger *JobLedger, notifier JobNotifier, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		jobs:     map[string]*registeredJob{},
	}
}

func (s *Scheduler) Register(def JobDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return fmt.Errorf("job definition needs a name and a handler")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[def.Name]; exists {
		return fmt.Errorf("job %s is already registered", def.Name)
	}

	job := &registeredJob{def: def}
	entryId, err := s.cron.AddFunc(def.Spec, func() {
		s.fire(context.Background(), job)
	})
	if err != nil {
		return fmt.Errorf("job %s has an invalid schedule %q: %w", def.Name, def.Spec, err)
	}
	job.entryId = entryId
	s.jobs[def.Name] = job

	s.logger.WithFields(logrus.Fields{
		"job":      def.Name,
		"family":   def.Family,
		"schedule": def.Spec,
	}).Info("registered job")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithFields(logrus.Fields{"jobs": len(s.jobs)}).Info("scheduler started")
}

// Stop halts the timers and waits for in-flight scheduled firings to return.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out; abandoning in-flight jobs")
	}
}

// fire is the scheduled entry point. Disabled jobs are skipped silently (no
// ledger row); everything else is wrapped so a bad firing can never take down
// the process or the next firing.
func (s *Scheduler) fire(ctx context.Context, job *registeredJob) {
	if !s.jobEnabled(job.def) {
		s.logger.WithFields(logrus.Fields{"job": job.def.Name}).Debug("job disabled; skipping firing")
		return
	}
	run, err := s.ledger.StartRun(ctx, job.def.Name, nil, nil)
	if err != nil {
		return
	}
	s.execute(ctx, job.def, run)
}

// Trigger starts a named job manually: the ledger row is created synchronously
// so the caller gets a run id immediately, while the body executes in the
// background.
func (s *Scheduler) Trigger(ctx context.Context, jobName string, tenantId *string) (*models.JobRun, error) {
	s.mu.Lock()
	job, ok := s.jobs[jobName]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown job %s", jobName)
	}
	if !s.jobEnabled(job.def) {
		return nil, fmt.Errorf("job %s is disabled", jobName)
	}

	run, err := s.ledger.StartRun(ctx, jobName, tenantId, map[string]string{"trigger": "manual"})
	if err != nil {
		return nil, err
	}
	go s.execute(context.Background(), job.def, run)
	return run, nil
}

func (s *Scheduler) jobEnabled(def JobDefinition) bool {
	if !config.JobsEnabled() {
		return false
	}
	if def.Enabled != nil && !def.Enabled() {
		return false
	}
	return true
}

func (s *Scheduler) execute(ctx context.Context, def JobDefinition, run *models.JobRun) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("job panicked: %v", r)
			config.LogError(s.logger, "Workflow", "execute", "Job panicked", def.Name, panicErr)
			if err := s.ledger.FailRun(ctx, run, panicErr, RunCounters{}); err == nil {
				s.notifier.JobFailed(def.Name, run, panicErr)
			}
		}
	}()

	tracer := otel.Tracer("safety-backend/jobs")
	ctx, span := tracer.Start(ctx, "job."+def.Name)
	defer span.End()

	// Best-effort overlap guard across replicas. Without redis the job still
	// runs; the per-(tenant,date) advisory lock protects the recompute itself.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "job_lock:"+def.Name, 10*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			overlapErr := fmt.Errorf("job %s is already running elsewhere", def.Name)
			s.logger.WithFields(logrus.Fields{"job": def.Name}).Warn(overlapErr.Error())
			_ = s.ledger.FailRun(ctx, run, overlapErr, RunCounters{})
			return
		}
		if err == nil {
			defer func() {
				_ = lock.Release(ctx)
			}()
		} else {
			config.LogError(s.logger, "Workflow", "execute", "Failed to obtain job lock; continuing without it", def.Name, err)
		}
	}

	started := time.Now()
	counters, metadata, err := def.Handler(ctx, run)
	if err != nil {
		span.RecordError(err)
		config.LogError(s.logger, "Workflow", "execute", "Job failed", def.Name, err)
		if ferr := s.ledger.FailRun(ctx, run, err, counters); ferr == nil {
			s.notifier.JobFailed(def.Name, run, err)
		}
		return
	}

	if cerr := s.ledger.CompleteRun(ctx, run, counters, metadata); cerr != nil {
		config.LogError(s.logger, "Workflow", "execute", "Failed to close job run", def.Name, cerr)
		return
	}
	_ = config.SetRedisValue("job_last_run:"+def.Name, time.Now().UTC().Format(time.RFC3339), 0)
	if metadata != nil {
		_ = config.SetRedisObject("job_last_result:"+def.Name, metadata, 24*time.Hour)
	}

	run.ItemsProcessed = counters.Processed
	run.ItemsSucceeded = counters.Succeeded
	run.ItemsFailed = counters.Failed
	s.notifier.JobCompleted(def.Name, run)

	s.logger.WithFields(logrus.Fields{
		"job":      def.Name,
		"runId":    run.Id,
		"duration": time.Since(started).String(),
	}).Info("job run finished")
}

// JobInfo is the introspection view of one registered job.
type JobInfo struct {
	Name     string     `json:"name"`
	Family   string     `json:"family"`
	Schedule string     `json:"schedule"`
	Enabled  bool       `json:"enabled"`
	NextRun  time.Time  `json:"next_run"`
	LastRun  *time.Time `json:"last_run,omitempty"`
}

// Jobs lists the registered jobs with their schedules, next firing and (when
// redis is available) the last successful completion.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, job := range s.jobs {
		info := JobInfo{
			Name:     name,
			Family:   job.def.Family,
			Schedule: job.def.Spec,
			Enabled:  s.jobEnabled(job.def),
			NextRun:  s.cron.Entry(job.entryId).Next,
		}
		if raw, found, err := config.GetRedisValue("job_last_run:" + name); err == nil && found {
			if last, perr := time.Parse(time.RFC3339, raw); perr == nil {
				info.LastRun = &last
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/safety_backend/config"
	"bitbucket.org/mmdatafocus/safety_backend/models"
	"bitbucket.org/mmdatafocus/safety_backend/workflow"
)

func main() {
	logger := config.GetLogger()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	// IMPORTANT: AutoMigrate can run DDL that blocks tables.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	ledger := workflow.NewJobLedger(db, logger)

	// A crashed process leaves its ledger row "running" forever; sweep those
	// before scheduling anything new.
	if _, err := ledger.ReapStaleRuns(sigCtx, config.JobStaleRunningThreshold()); err != nil {
		config.LogError(logger, "Main", "main", "Failed to reap stale job runs", nil, err)
	}

	source := workflow.NewMetricsSource(db)
	aggregation := workflow.NewAggregationService(db, source, logger)
	scoring := workflow.NewRiskScoreService(db, source, logger)
	cleanup := workflow.NewCleanupService(db, logger)

	scheduler := workflow.NewScheduler(ledger, workflow.NewLogNotifier(logger), logger)
	if err := workflow.RegisterPipelineJobs(scheduler, aggregation, scoring, cleanup); err != nil {
		config.LogError(logger, "Main", "main", "Failed to register jobs", nil, err)
		os.Exit(1)
	}
	scheduler.Start()

	for _, job := range scheduler.Jobs() {
		logger.WithFields(logrus.Fields{
			"job":      job.Name,
			"family":   job.Family,
			"schedule": job.Schedule,
			"enabled":  job.Enabled,
			"nextRun":  job.NextRun,
		}).Info("job scheduled")
	}

	<-sigCtx.Done()
	logger.Info("shutdown signal received; stopping scheduler")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	logger.Info("scheduler stopped")
}

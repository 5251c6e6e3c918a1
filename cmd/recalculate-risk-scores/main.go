package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/safety_backend/config"
	"bitbucket.org/mmdatafocus/safety_backend/models"
	"bitbucket.org/mmdatafocus/safety_backend/workflow"
)

func main() {
	tenantID := flag.String("tenant-id", "", "Optional: recalculate only one tenant. If empty, recalculates all active tenants.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	logger := config.GetLogger()
	source := workflow.NewMetricsSource(db)
	scoring := workflow.NewRiskScoreService(db, source, logger)
	now := time.Now().UTC()

	if strings.TrimSpace(*tenantID) != "" {
		tid := strings.TrimSpace(*tenantID)
		var tenant models.Tenant
		if err := db.WithContext(ctx).Where("id = ?", tid).First(&tenant).Error; err != nil {
			fmt.Fprintf(os.Stderr, "tenant %s not found: %v\n", tid, err)
			os.Exit(1)
		}
		settings := models.ParseScoringSettings(tenant.RiskSettings)
		if !settings.Enabled {
			fmt.Printf("tenant %s has risk scoring disabled; nothing to do\n", tid)
			return
		}
		sites, err := source.TenantSites(ctx, tid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list sites for tenant %s: %v\n", tid, err)
			os.Exit(1)
		}
		since := now.Add(-time.Duration(settings.ScoringWindowDays) * 24 * time.Hour)
		scored := 0
		for _, site := range sites {
			if err := scoring.ScoreSite(ctx, tenant, site.Id, settings, since, now); err != nil {
				fmt.Fprintf(os.Stderr, "site %s failed: %v\n", site.Id, err)
				continue
			}
			scored++
		}
		fmt.Printf("Recalculated %d/%d sites for tenant %s\n", scored, len(sites), tid)
		return
	}

	result, err := scoring.RunScoring(ctx, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scoring failed: %v\n", err)
		os.Exit(1)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "tenant %s: %s\n", e.TenantId, e.Error)
	}
	fmt.Printf("Recalculated %d sites (%d failed) across %d tenants; %d tenants skipped\n",
		result.SitesScored, result.SitesFailed, result.TenantsProcessed, result.TenantsSkipped)
}

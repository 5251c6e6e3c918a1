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
	tenantID := flag.String("tenant-id", "", "Optional: backfill only one tenant. If empty, backfills all active tenants.")
	from := flag.String("from", "", "Start date (YYYY-MM-DD). Required.")
	to := flag.String("to", "", "Optional: end date (YYYY-MM-DD). Defaults to yesterday (UTC).")
	flag.Parse()

	ctx := context.Background()
	// Explicit DB connect (config no longer connects DB in init()).
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	// Ensure schema is up-to-date (creates daily_summaries if missing).
	models.MigrateTable()

	start, err := time.Parse("2006-01-02", strings.TrimSpace(*from))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -from date %q: %v\n", *from, err)
		os.Exit(1)
	}
	end := time.Now().UTC().Add(-24 * time.Hour)
	if strings.TrimSpace(*to) != "" {
		end, err = time.Parse("2006-01-02", strings.TrimSpace(*to))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -to date %q: %v\n", *to, err)
			os.Exit(1)
		}
	}
	if end.Before(start) {
		fmt.Fprintln(os.Stderr, "-to must not be before -from")
		os.Exit(1)
	}

	logger := config.GetLogger()
	aggregation := workflow.NewAggregationService(db, workflow.NewMetricsSource(db), logger)

	if strings.TrimSpace(*tenantID) != "" {
		tid := strings.TrimSpace(*tenantID)
		fmt.Printf("Backfilling daily_summaries tenant=%s from=%s to=%s\n",
			tid, start.Format("2006-01-02"), end.Format("2006-01-02"))
		for day := start; !day.After(end); day = day.Add(24 * time.Hour) {
			if err := aggregation.AggregateTenant(ctx, tid, day); err != nil {
				fmt.Fprintf(os.Stderr, "tenant %s date %s failed: %v\n", tid, day.Format("2006-01-02"), err)
			}
		}
		fmt.Println("Backfill complete")
		return
	}

	fmt.Printf("Backfilling daily_summaries for all tenants from=%s to=%s\n",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	result, err := aggregation.BackfillRange(ctx, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backfill failed: %v\n", err)
		os.Exit(1)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "tenant %s: %s\n", e.TenantId, e.Error)
	}
	fmt.Printf("Backfill complete: %d dates processed, %d errors\n", result.DatesProcessed, len(result.Errors))
}

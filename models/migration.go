package models

import (
	"log"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/safety_backend/config"
)

// Migrate runs AutoMigrate for every table the pipeline reads or writes. Source
// record tables (incidents, inspections, actions) are included so a standalone
// deployment can bootstrap itself; against the shared database AutoMigrate is a
// no-op for tables that already match.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Tenant{}, &Site{},
		&Incident{}, &Inspection{}, &Action{},
		&DailySummary{},
		&SiteRiskScore{}, &SiteRiskScoreHistory{},
		&JobRun{},
	)
}

func MigrateTable() {
	db := config.GetDB()

	if err := Migrate(db); err != nil {
		log.Fatal(err)
	}
}

package workflow

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AcquireSummaryLock serializes the delete-then-reinsert recompute for one
// (tenant, date) across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB transaction that will do the recompute. On non-MySQL dialects this
// is a no-op; those deployments rely on the redis job lock alone.
func AcquireSummaryLock(tx *gorm.DB, tenantId string, day time.Time) error {
	if tx.Dialector.Name() != "mysql" {
		return nil
	}
	lockName := summaryLockName(tenantId, day)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire summary lock for tenant_id=%s date=%s", tenantId, day.Format("2006-01-02"))
	}
	return nil
}

func ReleaseSummaryLock(tx *gorm.DB, tenantId string, day time.Time) {
	if tx.Dialector.Name() != "mysql" {
		return
	}
	lockName := summaryLockName(tenantId, day)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

func summaryLockName(tenantId string, day time.Time) string {
	return fmt.Sprintf("daily_summary:%s:%s", tenantId, day.Format("2006-01-02"))
}

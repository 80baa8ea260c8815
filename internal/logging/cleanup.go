package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"gorm.io/gorm"
)

// DefaultRetention is how long system_logs rows are kept.
const DefaultRetention = 30 * 24 * time.Hour

// StartCleanup deletes system_logs older than retention once a day until ctx is done.
func StartCleanup(ctx context.Context, db *gorm.DB, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				result := db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
				if result.Error != nil {
					slog.Error("log cleanup failed", "action", "log_cleanup", "error", result.Error.Error())
				} else if result.RowsAffected > 0 {
					slog.Info("log cleanup completed", "deleted", result.RowsAffected)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

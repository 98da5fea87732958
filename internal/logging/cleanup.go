package logging

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/unipet/billing-engine/internal/models"
)

// StartCleanup runs a daily goroutine that deletes system_logs older than
// retention. Escalated rows are kept until someone resolves them.
func StartCleanup(db *gorm.DB, retention time.Duration, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				result := db.Where("timestamp < ? AND escalated = ?", cutoff, false).Delete(&models.SystemLog{})
				if result.Error != nil {
					slog.Error("log cleanup failed", "error", result.Error)
				} else if result.RowsAffected > 0 {
					slog.Info("log cleanup completed", "deleted", result.RowsAffected)
				}
			case <-done:
				return
			}
		}
	}()
}

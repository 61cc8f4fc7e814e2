package logging

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/models"
	"gorm.io/gorm"
)

// RetentionDays is how long system_logs rows are kept.
const RetentionDays = 30

// Purger deletes rows that have outlived their retention at now and reports
// how many were removed.
type Purger struct {
	Name  string
	Purge func(now time.Time) (int64, error)
}

// LogPurger removes system_logs older than RetentionDays.
func LogPurger(db *gorm.DB) Purger {
	return Purger{
		Name: "system_logs",
		Purge: func(now time.Time) (int64, error) {
			cutoff := now.AddDate(0, 0, -RetentionDays)
			result := db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
			return result.RowsAffected, result.Error
		},
	}
}

// StartCleanup runs the purgers once a day until done is closed.
func StartCleanup(done chan struct{}, purgers ...Purger) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runPurgers(purgers, time.Now())
			case <-done:
				return
			}
		}
	}()
}

func runPurgers(purgers []Purger, now time.Time) {
	for _, p := range purgers {
		deleted, err := p.Purge(now)
		if err != nil {
			slog.Warn("cleanup failed", "target", p.Name, "error", err)
			continue
		}
		if deleted > 0 {
			slog.Info("cleanup completed", "target", p.Name, "deleted", deleted)
		}
	}
}

// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartMaintenanceScheduler runs the periodic hygiene jobs: purging
// expired verification codes and expiring slot pools that never paid.
func StartMaintenanceScheduler(codes *CodeService, pools *BulkService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Hourly: drop expired verification codes. Expiry is already
	// enforced on lookup, so this only trims dead rows.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			n, err := codes.PurgeExpired()
			if err != nil {
				log.Printf("[Scheduler] Code purge failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("🧹 Purged %d expired verification code(s)", n)
			}
		}),
	)

	// Every 30 minutes: expire pools stuck in draft/payment_pending
	// for over 48 hours.
	_, _ = sched.NewJob(
		gocron.DurationJob(30*time.Minute),
		gocron.NewTask(func() {
			n, err := pools.ExpireStalePools(48 * time.Hour)
			if err != nil {
				log.Printf("[Scheduler] Pool expiry sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("⏳ Expired %d stale slot pool(s)", n)
			}
		}),
	)
}

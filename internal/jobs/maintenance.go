package jobs

import (
	"log"
	"time"

	"github.com/medlane-ng/medlane-backend/internal/config"
	"github.com/medlane-ng/medlane-backend/internal/storage"
)

// MaintenanceJob runs the periodic housekeeping: garbage-collecting
// sessions that never progressed past NEW, and purging expired OTP rows.
// Logged-in sessions are never collected.
type MaintenanceJob struct {
	store storage.Store
	cfg   config.SessionConfig
	stop  chan struct{}
}

func NewMaintenanceJob(store storage.Store, cfg config.SessionConfig) *MaintenanceJob {
	return &MaintenanceJob{
		store: store,
		cfg:   cfg,
		stop:  make(chan struct{}),
	}
}

// Start launches the housekeeping tickers.
func (j *MaintenanceJob) Start() {
	log.Println("🧹 Starting maintenance jobs...")
	go j.runSessionGC()
	go j.runOTPPurge()
}

// Stop halts all tickers.
func (j *MaintenanceJob) Stop() {
	close(j.stop)
	log.Println("🧹 Maintenance jobs stopped")
}

func (j *MaintenanceJob) runSessionGC() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-j.cfg.GCAfter)
			removed, err := j.store.DeleteIdleNewSessions(cutoff)
			if err != nil {
				log.Printf("⚠️  Session GC failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("🧹 Collected %d idle NEW sessions", removed)
			}
		}
	}
}

func (j *MaintenanceJob) runOTPPurge() {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			// Keep expired codes around for an hour for support queries
			cutoff := time.Now().Add(-1 * time.Hour)
			removed, err := j.store.DeleteExpiredOTPs(cutoff)
			if err != nil {
				log.Printf("⚠️  OTP purge failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("🧹 Purged %d expired OTPs", removed)
			}
		}
	}
}

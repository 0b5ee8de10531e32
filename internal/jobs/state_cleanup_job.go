package jobs

import (
	"context"
	"log"
	"time"

	"communityos/guildlink/internal/db/repositories"
	"communityos/guildlink/internal/metrics"
)

// StateCleanupJob purges expired OAuth state rows. Abandoned authorize
// redirects otherwise accumulate forever, one row per click.
type StateCleanupJob struct {
	stateRepo *repositories.OAuthStateRepo
	registry  *metrics.MetricsRegistry
}

// NewStateCleanupJob creates a new state cleanup job
func NewStateCleanupJob(stateRepo *repositories.OAuthStateRepo, registry *metrics.MetricsRegistry) *StateCleanupJob {
	return &StateCleanupJob{
		stateRepo: stateRepo,
		registry:  registry,
	}
}

// Run executes one cleanup pass.
func (j *StateCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	purged, err := j.stateRepo.DeleteExpired(ctx)
	if err != nil {
		log.Printf("[StateCleanupJob] Cleanup failed: %v", err)
		return err
	}

	if purged > 0 {
		log.Printf("[StateCleanupJob] Purged %d expired states in %s", purged, time.Since(start))
	}
	j.registry.StatesPurgedTotal.Add(float64(purged))

	return nil
}

// RunScheduled runs cleanup passes on a fixed interval until the context
// is cancelled.
func (j *StateCleanupJob) RunScheduled(ctx context.Context, interval time.Duration) {
	log.Printf("[StateCleanupJob] Scheduled every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[StateCleanupJob] Stopping")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				// Next tick retries; a transient DB error should not kill
				// the schedule.
				continue
			}
		}
	}
}

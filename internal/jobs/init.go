package jobs

import (
	"context"
	"time"

	"communityos/guildlink/internal/db/repositories"
	"communityos/guildlink/internal/metrics"
)

// InitializeJobs initializes and starts all background jobs
func InitializeJobs(
	ctx context.Context,
	stateRepo *repositories.OAuthStateRepo,
	registry *metrics.MetricsRegistry,
) *StateCleanupJob {
	cleanupJob := NewStateCleanupJob(stateRepo, registry)

	// Expired states become unusable the moment they pass the TTL; the
	// sweep just reclaims storage, so a loose interval is fine.
	go cleanupJob.RunScheduled(ctx, 10*time.Minute)

	return cleanupJob
}

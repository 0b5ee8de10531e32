package workers

import (
	"context"

	"communityos/guildlink/internal/db/repositories"
	"communityos/guildlink/internal/metrics"
	"communityos/guildlink/internal/services"
)

type WorkersContainer struct {
	SyncWorker *SyncJobWorker
}

func InitWorkers(
	ctx context.Context,
	jobRepo *repositories.SyncJobRepo,
	syncSvc *services.RoleSyncService,
	registry *metrics.MetricsRegistry,
) *WorkersContainer {
	worker := NewSyncJobWorker("sync_worker", jobRepo, syncSvc, registry)

	go worker.Start(ctx)

	return &WorkersContainer{
		SyncWorker: worker,
	}
}

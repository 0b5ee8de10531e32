package workers

import (
	"context"
	"errors"
	"log"
	"time"

	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/db/repositories"
	"communityos/guildlink/internal/metrics"
	models "communityos/guildlink/internal/models/gorm"
	"communityos/guildlink/internal/services"

	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 20
	defaultConcurrency  = 4

	// First retry waits this long; each further attempt doubles it.
	baseRetryDelay = 30 * time.Second
)

// SyncJobWorker polls the durable queue and runs role reconciliation for
// claimed jobs. Multiple worker processes can poll the same table; the
// atomic claim guarantees each job is processed by exactly one of them.
type SyncJobWorker struct {
	workerID string
	jobRepo  *repositories.SyncJobRepo
	syncSvc  *services.RoleSyncService
	registry *metrics.MetricsRegistry

	pollInterval time.Duration
	batchSize    int
	concurrency  int
}

// NewSyncJobWorker creates a new sync job worker
func NewSyncJobWorker(
	workerID string,
	jobRepo *repositories.SyncJobRepo,
	syncSvc *services.RoleSyncService,
	registry *metrics.MetricsRegistry,
) *SyncJobWorker {
	return &SyncJobWorker{
		workerID:     workerID,
		jobRepo:      jobRepo,
		syncSvc:      syncSvc,
		registry:     registry,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		concurrency:  defaultConcurrency,
	}
}

// Start polls until the context is cancelled. Errors inside a poll cycle
// are logged and the loop continues; a wedged cycle never stops the worker.
func (w *SyncJobWorker) Start(ctx context.Context) {
	log.Printf("[%s] Starting sync job worker, poll interval %s", w.workerID, w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[%s] Shutting down", w.workerID)
			return
		case <-ticker.C:
			if err := w.runBatch(ctx); err != nil {
				log.Printf("[%s] Poll cycle error: %v", w.workerID, err)
			}
		}
	}
}

// runBatch claims and processes one batch of runnable jobs.
func (w *SyncJobWorker) runBatch(ctx context.Context) error {
	jobs, err := w.jobRepo.ListPending(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for i := range jobs {
		job := jobs[i]
		g.Go(func() error {
			w.processOne(gctx, &job)
			return nil
		})
	}

	return g.Wait()
}

// processOne claims a single job and drives it to a terminal state or back
// into the pending pool with backoff.
func (w *SyncJobWorker) processOne(ctx context.Context, job *models.SyncJob) {
	claimed, err := w.jobRepo.Claim(ctx, job.ID)
	if err != nil {
		log.Printf("[%s] Failed to claim job %s: %v", w.workerID, job.ID, err)
		return
	}
	if !claimed {
		// Another worker got there first.
		return
	}

	start := time.Now()
	result, err := w.syncSvc.ProcessJob(ctx, job)
	w.registry.SyncJobDuration.WithLabelValues(string(job.Reason)).Observe(time.Since(start).Seconds())

	if err != nil {
		w.handleFailure(ctx, job, err)
		return
	}

	w.registry.SyncJobsTotal.WithLabelValues("done").Inc()
	w.registry.RolesMutatedTotal.WithLabelValues("add").Add(float64(len(result.RolesAdded)))
	w.registry.RolesMutatedTotal.WithLabelValues("remove").Add(float64(len(result.RolesRemoved)))

	// Completed jobs are deleted to keep the queue table bounded; failed
	// jobs stay behind with their diagnostics.
	if err := w.jobRepo.Delete(ctx, job.ID); err != nil {
		log.Printf("[%s] Failed to delete completed job %s: %v", w.workerID, job.ID, err)
	}
}

func (w *SyncJobWorker) handleFailure(ctx context.Context, job *models.SyncJob, procErr error) {
	attempts := job.Attempts + 1
	msg := procErr.Error()

	if attempts >= constants.MaxSyncJobAttempts || isTerminal(procErr) {
		log.Printf("[%s] Job %s failed permanently after %d attempts: %v", w.workerID, job.ID, attempts, procErr)
		w.registry.SyncJobsTotal.WithLabelValues("failed").Inc()

		if err := w.jobRepo.SetStatus(ctx, job.ID, constants.JobStatusFailed, attempts, &msg); err != nil {
			log.Printf("[%s] Failed to mark job %s failed: %v", w.workerID, job.ID, err)
		}
		return
	}

	delay := baseRetryDelay << (attempts - 1)
	nextAttempt := time.Now().UTC().Add(delay)

	log.Printf("[%s] Job %s attempt %d failed, retrying in %s: %v", w.workerID, job.ID, attempts, delay, procErr)
	w.registry.SyncJobsTotal.WithLabelValues("retried").Inc()

	if err := w.jobRepo.Reschedule(ctx, job.ID, attempts, &msg, nextAttempt); err != nil {
		log.Printf("[%s] Failed to reschedule job %s: %v", w.workerID, job.ID, err)
	}
}

// isTerminal reports errors that retrying cannot fix.
func isTerminal(err error) bool {
	return errors.Is(err, services.ErrNoGuildConnected) ||
		errors.Is(err, services.ErrIntegrationDisabled)
}

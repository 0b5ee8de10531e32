package repositories

import (
	"context"
	"fmt"
	"time"

	"communityos/guildlink/internal/constants"
	models "communityos/guildlink/internal/models/gorm"

	"gorm.io/gorm"
)

// SyncJobRepo is the durable queue of deferred role resynchronization work
type SyncJobRepo struct {
	db *gorm.DB
}

// NewSyncJobRepo creates a new sync job repository
func NewSyncJobRepo(db *gorm.DB) *SyncJobRepo {
	return &SyncJobRepo{db: db}
}

// Enqueue inserts a pending job. Multiple triggers may enqueue for the
// same user; processing is idempotent so overlap is harmless.
func (r *SyncJobRepo) Enqueue(ctx context.Context, job *models.SyncJob) error {
	job.Status = constants.JobStatusPending

	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to enqueue sync job: %w", err)
	}
	return nil
}

// ListPending returns runnable pending jobs, oldest first. Jobs waiting on
// a backoff window (next_attempt_at in the future) are excluded.
func (r *SyncJobRepo) ListPending(ctx context.Context, limit int) ([]models.SyncJob, error) {
	var jobs []models.SyncJob

	err := r.db.WithContext(ctx).
		Where("status = ?", constants.JobStatusPending).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", time.Now().UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	return jobs, nil
}

// Claim flips pending -> processing for exactly one worker. The WHERE on
// status makes the transition atomic: overlapping poll cycles race on the
// UPDATE and only the winner sees RowsAffected == 1.
func (r *SyncJobRepo) Claim(ctx context.Context, jobID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SyncJob{}).
		Where("id = ? AND status = ?", jobID, constants.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     constants.JobStatusProcessing,
			"updated_at": time.Now().UTC(),
		})

	if res.Error != nil {
		return false, fmt.Errorf("failed to claim job: %w", res.Error)
	}

	return res.RowsAffected == 1, nil
}

// SetStatus records an explicit transition, including terminal failure
// with diagnostics retained.
func (r *SyncJobRepo) SetStatus(ctx context.Context, jobID string, status constants.JobStatus, attempts int, lastError *string) error {
	err := r.db.WithContext(ctx).
		Model(&models.SyncJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":     status,
			"attempts":   attempts,
			"last_error": lastError,
			"updated_at": time.Now().UTC(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}
	return nil
}

// Reschedule puts a failed attempt back in the pending pool with a backoff
// window before it becomes runnable again.
func (r *SyncJobRepo) Reschedule(ctx context.Context, jobID string, attempts int, lastError *string, nextAttemptAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.SyncJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":          constants.JobStatusPending,
			"attempts":        attempts,
			"last_error":      lastError,
			"next_attempt_at": &nextAttemptAt,
			"updated_at":      time.Now().UTC(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return nil
}

// Delete removes a job after terminal success to keep the table bounded.
func (r *SyncJobRepo) Delete(ctx context.Context, jobID string) error {
	if err := r.db.WithContext(ctx).Delete(&models.SyncJob{}, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// ListByOrg returns a tenant's recent jobs for the operator dashboard.
func (r *SyncJobRepo) ListByOrg(ctx context.Context, orgID string, limit int) ([]models.SyncJob, error) {
	var jobs []models.SyncJob

	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

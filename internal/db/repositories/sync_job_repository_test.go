package repositories

import (
	"context"
	"testing"
	"time"

	"communityos/guildlink/internal/constants"
	gormModels "communityos/guildlink/internal/models/gorm"
)

func TestSyncJobRepo_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSyncJobRepo(db)
	ctx := context.Background()

	job := &gormModels.SyncJob{
		ID:      "job-1",
		OrgID:   "org-1",
		UserID:  "user-1",
		Reason:  constants.SyncReasonPurchase,
		Payload: `{"product_id":"prod-1"}`,
	}
	if err := repo.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	pending, err := repo.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "job-1" {
		t.Fatalf("Expected enqueued job in pending list, got %+v", pending)
	}
	if pending[0].Status != constants.JobStatusPending {
		t.Errorf("Expected pending status, got %s", pending[0].Status)
	}

	claimed, err := repo.Claim(ctx, "job-1")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if !claimed {
		t.Fatal("Expected first claim to succeed")
	}

	pending, err = repo.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected claimed job to leave pending list, got %d", len(pending))
	}

	if err := repo.SetStatus(ctx, "job-1", constants.JobStatusDone, 1, nil); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := repo.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	jobs, err := repo.ListByOrg(ctx, "org-1", 10)
	if err != nil {
		t.Fatalf("ListByOrg failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("Expected table empty after delete, got %d", len(jobs))
	}
}

func TestSyncJobRepo_Claim_OnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSyncJobRepo(db)
	ctx := context.Background()

	job := &gormModels.SyncJob{ID: "job-1", OrgID: "org-1", UserID: "user-1", Reason: constants.SyncReasonManual}
	if err := repo.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	first, err := repo.Claim(ctx, "job-1")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	second, err := repo.Claim(ctx, "job-1")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	if !first {
		t.Error("Expected first claim to succeed")
	}
	if second {
		t.Error("Expected second claim to fail, job already processing")
	}
}

func TestSyncJobRepo_SetStatus_FailedKeepsDiagnostics(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSyncJobRepo(db)
	ctx := context.Background()

	job := &gormModels.SyncJob{ID: "job-1", OrgID: "org-1", UserID: "user-1", Reason: constants.SyncReasonTagChange}
	if err := repo.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := repo.SetStatus(ctx, "job-1", constants.JobStatusFailed, 3, strPtr("discord: role grant failed with status 403")); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	jobs, err := repo.ListByOrg(ctx, "org-1", 10)
	if err != nil {
		t.Fatalf("ListByOrg failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("Expected 1 job, got %d", len(jobs))
	}

	got := jobs[0]
	if got.Status != constants.JobStatusFailed {
		t.Errorf("Expected failed status, got %s", got.Status)
	}
	if got.Attempts != 3 {
		t.Errorf("Expected attempts=3, got %d", got.Attempts)
	}
	if got.LastError == nil || *got.LastError == "" {
		t.Error("Expected last_error to be retained")
	}
}

func TestSyncJobRepo_ListPending_OldestFirstAndBackoff(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSyncJobRepo(db)
	ctx := context.Background()

	older := &gormModels.SyncJob{ID: "job-old", OrgID: "org-1", UserID: "u1", Reason: constants.SyncReasonManual, CreatedAt: time.Now().Add(-2 * time.Hour)}
	newer := &gormModels.SyncJob{ID: "job-new", OrgID: "org-1", UserID: "u2", Reason: constants.SyncReasonManual, CreatedAt: time.Now().Add(-1 * time.Hour)}
	if err := repo.Enqueue(ctx, newer); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := repo.Enqueue(ctx, older); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	pending, err := repo.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending jobs, got %d", len(pending))
	}
	if pending[0].ID != "job-old" {
		t.Errorf("Expected oldest job first, got %s", pending[0].ID)
	}

	// A rescheduled job inside its backoff window is not runnable
	future := time.Now().Add(10 * time.Minute)
	if err := repo.Reschedule(ctx, "job-old", 1, strPtr("transient"), future); err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}

	pending, err = repo.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "job-new" {
		t.Errorf("Expected only job-new runnable, got %+v", pending)
	}
}

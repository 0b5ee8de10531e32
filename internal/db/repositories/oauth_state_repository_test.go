package repositories

import (
	"context"
	"testing"
	"time"

	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/models/entities"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func setupStateDB(t *testing.T) *sqlx.DB {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open state database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	db.MustExec(`CREATE TABLE oauth_states (
		state TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		org_id TEXT,
		user_id TEXT,
		verifier TEXT NOT NULL,
		return_to TEXT NOT NULL DEFAULT '',
		callback_path TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`)

	return db
}

func newState(token string, createdAt time.Time) *entities.OAuthState {
	orgID := "org-1"
	userID := "user-1"
	return &entities.OAuthState{
		State:        token,
		Kind:         constants.StateKindUserLink,
		OrgID:        &orgID,
		UserID:       &userID,
		Verifier:     "verifier-1",
		ReturnTo:     "/settings",
		CallbackPath: "/api/v1/link/callback",
		CreatedAt:    createdAt,
	}
}

func TestOAuthStateRepo_ConsumeOnce(t *testing.T) {
	repo := NewOAuthStateRepo(setupStateDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, newState("tok-1", time.Now().UTC())); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	state, err := repo.Consume(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if state.Kind != constants.StateKindUserLink {
		t.Errorf("Expected user_link kind, got %s", state.Kind)
	}
	if state.OrgID == nil || *state.OrgID != "org-1" {
		t.Errorf("Expected org-1, got %v", state.OrgID)
	}
	if state.ReturnTo != "/settings" {
		t.Errorf("Expected return_to round trip, got %q", state.ReturnTo)
	}

	// Delete-on-read: the same token can never be consumed twice.
	if _, err := repo.Consume(ctx, "tok-1"); err != ErrStateNotFound {
		t.Fatalf("Second consume must fail with ErrStateNotFound, got %v", err)
	}
}

func TestOAuthStateRepo_ConsumeUnknown(t *testing.T) {
	repo := NewOAuthStateRepo(setupStateDB(t))

	if _, err := repo.Consume(context.Background(), "never-issued"); err != ErrStateNotFound {
		t.Fatalf("Expected ErrStateNotFound, got %v", err)
	}
}

func TestOAuthStateRepo_ConsumeExpired(t *testing.T) {
	repo := NewOAuthStateRepo(setupStateDB(t))
	ctx := context.Background()

	old := time.Now().UTC().Add(-(constants.OAuthStateTTLMinutes + 5) * time.Minute)
	if err := repo.Create(ctx, newState("tok-old", old)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := repo.Consume(ctx, "tok-old"); err != ErrStateExpired {
		t.Fatalf("Expected ErrStateExpired, got %v", err)
	}

	// The expired row was still deleted on read.
	if _, err := repo.Consume(ctx, "tok-old"); err != ErrStateNotFound {
		t.Fatalf("Expected ErrStateNotFound after expiry consume, got %v", err)
	}
}

func TestOAuthStateRepo_DeleteExpired(t *testing.T) {
	repo := NewOAuthStateRepo(setupStateDB(t))
	ctx := context.Background()

	old := time.Now().UTC().Add(-(constants.OAuthStateTTLMinutes + 5) * time.Minute)
	if err := repo.Create(ctx, newState("tok-old", old)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, newState("tok-fresh", time.Now().UTC())); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	deleted, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 purged row, got %d", deleted)
	}

	if _, err := repo.Consume(ctx, "tok-fresh"); err != nil {
		t.Errorf("Fresh state must survive the purge: %v", err)
	}
}

package repositories

import (
	"context"
	"testing"
	"time"

	"communityos/guildlink/internal/constants"
	gormModels "communityos/guildlink/internal/models/gorm"
)

func TestGuildConnectionRepo_ReconnectRefreshesLatest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGuildConnectionRepo(db)
	ctx := context.Background()

	twoHoursAgo := time.Now().UTC().Add(-2 * time.Hour)
	oneHourAgo := time.Now().UTC().Add(-1 * time.Hour)

	first := &gormModels.GuildConnection{
		ID: "c1", OrgID: "org-1", GuildID: "guild-old", GuildName: "Old Guild",
		BotModeAtConnect: constants.BotModeGlobal, ConnectedAt: twoHoursAgo,
	}
	second := &gormModels.GuildConnection{
		ID: "c2", OrgID: "org-1", GuildID: "guild-new", GuildName: "New Guild",
		BotModeAtConnect: constants.BotModeGlobal, ConnectedAt: oneHourAgo,
	}
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	latest, err := repo.Latest(ctx, "org-1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil || latest.GuildID != "guild-new" {
		t.Fatalf("Expected guild-new as latest, got %+v", latest)
	}

	// Reinstalling the older guild bumps connected_at, so it becomes the
	// latest again without adding a second row.
	reconnect := &gormModels.GuildConnection{
		ID: "c3", OrgID: "org-1", GuildID: "guild-old", GuildName: "Old Guild Renamed",
		BotModeAtConnect: constants.BotModeCustom, ConnectedAt: time.Now().UTC(),
	}
	if err := repo.Upsert(ctx, reconnect); err != nil {
		t.Fatalf("Reconnect upsert failed: %v", err)
	}

	latest, err = repo.Latest(ctx, "org-1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil || latest.GuildID != "guild-old" {
		t.Fatalf("Expected reconnected guild-old as latest, got %+v", latest)
	}
	if latest.GuildName != "Old Guild Renamed" {
		t.Errorf("Reconnect must refresh the display name, got %q", latest.GuildName)
	}
	if latest.BotModeAtConnect != constants.BotModeGlobal {
		t.Errorf("bot_mode_at_connect must stay frozen, got %s", latest.BotModeAtConnect)
	}

	var count int64
	if err := db.Model(&gormModels.GuildConnection{}).Where("org_id = ?", "org-1").Count(&count).Error; err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected 2 connection rows, got %d", count)
	}
}

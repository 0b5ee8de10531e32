package services

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"communityos/guildlink/internal/common"
	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/db/repositories"
	"communityos/guildlink/internal/discord"
	"communityos/guildlink/internal/logging"
	models "communityos/guildlink/internal/models/gorm"
	"communityos/guildlink/internal/vault"

	"gorm.io/gorm"
)

type configFixture struct {
	svc        *IntegrationConfigService
	configRepo *repositories.IntegrationConfigRepo
	gormDB     *gorm.DB
}

func setupConfigService(t *testing.T, fake *fakeDiscord) *configFixture {
	logging.Init("development")

	srv := fake.server(t)
	t.Setenv("DISCORD_API_BASE_URL", srv.URL)
	t.Setenv("DISCORD_CLIENT_ID", "global-client")
	t.Setenv("DISCORD_CLIENT_SECRET", "global-secret")
	t.Setenv("DISCORD_BOT_TOKEN", "global-bot-token")
	t.Setenv("VAULT_KEY_MATERIAL", "test-key-material")

	gormDB := setupTestDB(t)
	configRepo := repositories.NewIntegrationConfigRepo(gormDB)

	cache := common.NewCacheService(60, 120)
	creds := NewCredentialSource(configRepo, cache)

	return &configFixture{
		svc:        NewIntegrationConfigService(configRepo, creds, discord.NewClient()),
		configRepo: configRepo,
		gormDB:     gormDB,
	}
}

func TestIntegrationConfigService_GetUnconfigured(t *testing.T) {
	f := setupConfigService(t, &fakeDiscord{})

	view, err := f.svc.Get(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if view.BotMode != string(constants.BotModeGlobal) {
		t.Errorf("Unconfigured tenant defaults to global mode, got %q", view.BotMode)
	}
	if !view.IsEnabled {
		t.Error("Unconfigured tenant defaults to enabled")
	}
	if view.HasClientSecret || view.HasBotToken {
		t.Error("Unconfigured tenant has no stored secrets")
	}
}

func TestIntegrationConfigService_UpdateCustomEncryptsSecrets(t *testing.T) {
	f := setupConfigService(t, &fakeDiscord{})
	ctx := context.Background()

	view, err := f.svc.Update(ctx, "org-1", constants.BotModeCustom,
		"custom-client", "custom-secret", "custom-bot-token", nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if !view.HasClientSecret || !view.HasBotToken {
		t.Error("View must flag stored secrets")
	}

	config, err := f.configRepo.GetByOrgID(ctx, "org-1")
	if err != nil || config == nil {
		t.Fatalf("Config row missing: %v", err)
	}

	if !strings.HasPrefix(config.EncClientSecret, "enc_v1:") {
		t.Errorf("Client secret stored without envelope prefix: %q", config.EncClientSecret)
	}
	if strings.Contains(config.EncClientSecret, "custom-secret") {
		t.Error("Client secret stored in plaintext")
	}

	plaintext, err := vault.Decrypt(config.EncBotToken, "test-key-material")
	if err != nil {
		t.Fatalf("Stored bot token does not decrypt: %v", err)
	}
	if plaintext != "custom-bot-token" {
		t.Errorf("Round trip mismatch: %q", plaintext)
	}
}

func TestIntegrationConfigService_UpdateCustomRequiresAllCredentials(t *testing.T) {
	f := setupConfigService(t, &fakeDiscord{})

	_, err := f.svc.Update(context.Background(), "org-1", constants.BotModeCustom,
		"custom-client", "", "", nil)
	if err == nil {
		t.Fatal("Custom mode without secrets must be rejected")
	}
}

func TestIntegrationConfigService_UpdateCustomAcceptsLegacySecrets(t *testing.T) {
	f := setupConfigService(t, &fakeDiscord{})
	ctx := context.Background()

	encSecret, err := vault.Encrypt("legacy-secret", "test-key-material")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	encToken, err := vault.Encrypt("legacy-bot-token", "test-key-material")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// A tenant migrated from the old schema still holds its envelopes in
	// the pre-migration columns.
	seed := &models.IntegrationConfig{
		ID:                 "cfg-legacy",
		OrgID:              "org-1",
		BotMode:            constants.BotModeGlobal,
		ClientID:           "legacy-client",
		EncClientSecretOld: encSecret,
		EncBotTokenOld:     encToken,
		IsEnabled:          true,
	}
	if err := f.gormDB.Create(seed).Error; err != nil {
		t.Fatalf("Failed to seed legacy config: %v", err)
	}

	view, err := f.svc.Update(ctx, "org-1", constants.BotModeCustom, "", "", "", nil)
	if err != nil {
		t.Fatalf("Legacy envelopes must satisfy custom mode: %v", err)
	}
	if view.BotMode != string(constants.BotModeCustom) {
		t.Errorf("Expected custom mode, got %q", view.BotMode)
	}
	if !view.HasClientSecret || !view.HasBotToken {
		t.Error("Legacy envelopes must surface as stored secrets")
	}
}

func TestIntegrationConfigService_UpdateKeepsExistingSecrets(t *testing.T) {
	f := setupConfigService(t, &fakeDiscord{})
	ctx := context.Background()

	if _, err := f.svc.Update(ctx, "org-1", constants.BotModeCustom,
		"custom-client", "custom-secret", "custom-bot-token", nil); err != nil {
		t.Fatalf("Initial update failed: %v", err)
	}

	// Toggling enabled without resending secrets keeps the envelopes.
	disabled := false
	view, err := f.svc.Update(ctx, "org-1", constants.BotModeCustom, "", "", "", &disabled)
	if err != nil {
		t.Fatalf("Second update failed: %v", err)
	}
	if view.IsEnabled {
		t.Error("Expected disabled config")
	}
	if !view.HasClientSecret || !view.HasBotToken {
		t.Error("Omitted secrets must keep their stored envelopes")
	}
}

func TestIntegrationConfigService_ValidateRecordsSuccess(t *testing.T) {
	f := setupConfigService(t, &fakeDiscord{})
	ctx := context.Background()

	if _, err := f.svc.Update(ctx, "org-1", constants.BotModeCustom,
		"custom-client", "custom-secret", "custom-bot-token", nil); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	view, err := f.svc.Validate(ctx, "org-1")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if view.LastError != nil {
		t.Errorf("Expected no validation error, got %q", *view.LastError)
	}
	if view.LastValidatedAt == nil {
		t.Error("Expected validation timestamp")
	}
}

func TestIntegrationConfigService_ValidateRecordsFailure(t *testing.T) {
	f := setupConfigService(t, &fakeDiscord{botUserStatus: http.StatusUnauthorized})
	ctx := context.Background()

	if _, err := f.svc.Update(ctx, "org-1", constants.BotModeCustom,
		"custom-client", "custom-secret", "bad-bot-token", nil); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	view, err := f.svc.Validate(ctx, "org-1")
	if err != nil {
		t.Fatalf("Validate must record failure, not return it: %v", err)
	}
	if view.LastError == nil {
		t.Fatal("Expected recorded validation error")
	}
	if view.LastValidatedAt == nil {
		t.Error("Expected validation timestamp even on failure")
	}
}

package services

import (
	"context"
	"fmt"

	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/db/repositories"
	"communityos/guildlink/internal/discord"
	"communityos/guildlink/internal/logging"
	"communityos/guildlink/internal/models/dtos/responses"
	models "communityos/guildlink/internal/models/gorm"
	"communityos/guildlink/internal/vault"

	"github.com/google/uuid"
)

// IntegrationConfigService manages per-tenant Discord application
// settings. Secrets pass through here exactly once on write, are sealed
// into vault envelopes, and are never read back out to API callers.
type IntegrationConfigService struct {
	configRepo *repositories.IntegrationConfigRepo
	creds      *CredentialSource
	discord    *discord.Client
}

// NewIntegrationConfigService wires the config surface
func NewIntegrationConfigService(
	configRepo *repositories.IntegrationConfigRepo,
	creds *CredentialSource,
	discordClient *discord.Client,
) *IntegrationConfigService {
	return &IntegrationConfigService{
		configRepo: configRepo,
		creds:      creds,
		discord:    discordClient,
	}
}

// Get returns the tenant's config with secrets reduced to presence flags.
// An unconfigured tenant gets the implicit global-mode default.
func (s *IntegrationConfigService) Get(ctx context.Context, orgID string) (*responses.IntegrationConfigView, error) {
	config, err := s.configRepo.GetByOrgID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if config == nil {
		return &responses.IntegrationConfigView{
			OrgID:     orgID,
			BotMode:   string(constants.BotModeGlobal),
			IsEnabled: true,
		}, nil
	}

	return configView(config), nil
}

// Update writes the tenant's config. Secrets provided in the request are
// encrypted before the row is touched; omitted secrets keep their stored
// envelopes. The config cache is evicted so the change takes effect on the
// next credential resolution.
func (s *IntegrationConfigService) Update(ctx context.Context, orgID string, botMode constants.BotMode, clientID, clientSecret, botToken string, isEnabled *bool) (*responses.IntegrationConfigView, error) {
	if botMode != constants.BotModeGlobal && botMode != constants.BotModeCustom {
		return nil, fmt.Errorf("unknown bot mode %q", botMode)
	}

	existing, err := s.configRepo.GetByOrgID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	config := &models.IntegrationConfig{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		BotMode:   botMode,
		IsEnabled: true,
	}
	// The insert always carries a fresh id; when the tenant already has a
	// row the org_id conflict path updates it in place.
	if existing != nil {
		config.ClientID = existing.ClientID
		config.EncClientSecret = existing.EncClientSecret
		config.EncClientSecretOld = existing.EncClientSecretOld
		config.EncBotToken = existing.EncBotToken
		config.EncBotTokenOld = existing.EncBotTokenOld
		config.IsEnabled = existing.IsEnabled
	}

	if clientID != "" {
		config.ClientID = clientID
	}
	if isEnabled != nil {
		config.IsEnabled = *isEnabled
	}

	if clientSecret != "" {
		enc, err := vault.Encrypt(clientSecret, s.creds.KeyMaterial())
		if err != nil {
			return nil, fmt.Errorf("failed to seal client secret: %w", err)
		}
		config.EncClientSecret = enc
	}
	if botToken != "" {
		enc, err := vault.Encrypt(botToken, s.creds.KeyMaterial())
		if err != nil {
			return nil, fmt.Errorf("failed to seal bot token: %w", err)
		}
		config.EncBotToken = enc
	}

	// Legacy tenants may still hold their envelopes in the pre-migration
	// columns; those count as configured.
	if botMode == constants.BotModeCustom {
		hasSecret := config.EncClientSecret != "" || config.EncClientSecretOld != ""
		hasToken := config.EncBotToken != "" || config.EncBotTokenOld != ""
		if config.ClientID == "" || !hasSecret || !hasToken {
			return nil, fmt.Errorf("custom bot mode requires client_id, client_secret, and bot_token")
		}
	}

	if err := s.configRepo.Upsert(ctx, config); err != nil {
		return nil, err
	}
	s.creds.Evict(orgID)

	logging.Info("Integration config updated",
		"org_id", orgID,
		"bot_mode", botMode.String(),
		"enabled", config.IsEnabled,
	)

	return configView(config), nil
}

// Validate resolves the tenant's active credentials and checks the bot
// token against the live API. The outcome is recorded on the config row
// either way.
func (s *IntegrationConfigService) Validate(ctx context.Context, orgID string) (*responses.IntegrationConfigView, error) {
	resolved, _, err := s.creds.Resolve(ctx, &orgID)
	if err == nil {
		_, err = s.discord.BotUser(ctx, resolved.BotToken)
	}

	var lastError *string
	if err != nil {
		msg := err.Error()
		lastError = &msg
		logging.Warn("Credential validation failed",
			"org_id", orgID,
			"error", msg,
		)
	}

	if recordErr := s.configRepo.SetValidation(ctx, orgID, lastError); recordErr != nil {
		return nil, recordErr
	}
	s.creds.Evict(orgID)

	return s.Get(ctx, orgID)
}

func configView(config *models.IntegrationConfig) *responses.IntegrationConfigView {
	return &responses.IntegrationConfigView{
		OrgID:           config.OrgID,
		BotMode:         string(config.BotMode),
		ClientID:        config.ClientID,
		HasClientSecret: config.EncClientSecret != "" || config.EncClientSecretOld != "",
		HasBotToken:     config.EncBotToken != "" || config.EncBotTokenOld != "",
		IsEnabled:       config.IsEnabled,
		LastError:       config.LastError,
		LastValidatedAt: config.LastValidatedAt,
	}
}

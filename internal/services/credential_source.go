package services

import (
	"context"
	"os"
	"time"

	"communityos/guildlink/internal/common"
	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/credentials"
	"communityos/guildlink/internal/db/repositories"
	models "communityos/guildlink/internal/models/gorm"
)

const configCacheTTL = 5 * time.Minute

// CredentialSource resolves the active application credentials for a
// tenant (or the platform-wide globals for tenant-less flows). Config
// rows are cached; decrypted secrets are not.
type CredentialSource struct {
	configRepo *repositories.IntegrationConfigRepo
	cache      common.CacheInterface

	global      credentials.GlobalCredentials
	keyMaterial string
}

// NewCredentialSource loads the global credential set and vault key from
// the environment.
func NewCredentialSource(configRepo *repositories.IntegrationConfigRepo, cache common.CacheInterface) *CredentialSource {
	return &CredentialSource{
		configRepo: configRepo,
		cache:      cache,
		global: credentials.GlobalCredentials{
			ClientID:     os.Getenv("DISCORD_CLIENT_ID"),
			ClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
			BotToken:     os.Getenv("DISCORD_BOT_TOKEN"),
		},
		keyMaterial: os.Getenv("VAULT_KEY_MATERIAL"),
	}
}

func configCacheKey(orgID string) string {
	return string(constants.CachePrefixIntegrationConfig) + orgID
}

// Config returns the tenant's integration config, nil when unconfigured.
func (s *CredentialSource) Config(ctx context.Context, orgID string) (*models.IntegrationConfig, error) {
	val, err := s.cache.GetOrSet(configCacheKey(orgID), configCacheTTL, func() (any, error) {
		return s.configRepo.GetByOrgID(ctx, orgID)
	})
	if err != nil {
		return nil, err
	}

	config, ok := val.(*models.IntegrationConfig)
	if !ok {
		// Cache round-tripped through JSON (Redis impl); fall back to the DB
		return s.configRepo.GetByOrgID(ctx, orgID)
	}
	return config, nil
}

// Evict drops a tenant's cached config after an update.
func (s *CredentialSource) Evict(orgID string) {
	s.cache.Delete(configCacheKey(orgID))
}

// Resolve produces plaintext credentials for one operation. For a nil
// tenant the platform globals are used unconditionally.
func (s *CredentialSource) Resolve(ctx context.Context, orgID *string) (*credentials.ResolvedCredentials, constants.BotMode, error) {
	if orgID == nil {
		resolved, err := credentials.Resolve(constants.BotModeGlobal, s.global, credentials.CustomCredentials{}, s.keyMaterial)
		return resolved, constants.BotModeGlobal, err
	}

	config, err := s.Config(ctx, *orgID)
	if err != nil {
		return nil, "", err
	}

	mode := constants.BotModeGlobal
	custom := credentials.CustomCredentials{}

	if config != nil {
		if !config.IsEnabled {
			return nil, config.BotMode, ErrIntegrationDisabled
		}
		mode = config.BotMode
		custom = credentials.CustomCredentials{
			ClientID:              config.ClientID,
			EncClientSecret:       config.EncClientSecret,
			EncClientSecretLegacy: config.EncClientSecretOld,
			EncBotToken:           config.EncBotToken,
			EncBotTokenLegacy:     config.EncBotTokenOld,
		}
	}

	resolved, err := credentials.Resolve(mode, s.global, custom, s.keyMaterial)
	if err != nil {
		return nil, mode, err
	}
	return resolved, mode, nil
}

// KeyMaterial exposes the vault key for services that encrypt on write.
func (s *CredentialSource) KeyMaterial() string {
	return s.keyMaterial
}

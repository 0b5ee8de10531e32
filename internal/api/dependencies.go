package api

import (
	"os"

	"communityos/guildlink/internal/common"
	"communityos/guildlink/internal/db"
	"communityos/guildlink/internal/db/repositories"
	"communityos/guildlink/internal/discord"
	"communityos/guildlink/internal/metrics"
	"communityos/guildlink/internal/services"
)

type Repositories struct {
	Keys        *repositories.KeysRepo
	OAuthState  *repositories.OAuthStateRepo
	Config      *repositories.IntegrationConfigRepo
	Connections *repositories.GuildConnectionRepo
	UserLinks   *repositories.UserLinkRepo
	RoleRules   *repositories.RoleRuleRepo
	SyncJobs    *repositories.SyncJobRepo
	UserGorm    *repositories.UserRepositoryGORM
}

type Services struct {
	Cache     common.CacheInterface
	Discord   *discord.Client
	Creds     *services.CredentialSource
	Link      *services.LinkService
	RoleSync  *services.RoleSyncService
	Config    *services.IntegrationConfigService
	URLSigner *common.URLSignerService
	Resolver  common.RedirectResolver
}

type Dependencies struct {
	Repo     *Repositories
	Services *Services
	Metrics  *metrics.MetricsRegistry
}

func InitDependencies(metricsReg *metrics.MetricsRegistry) (*Dependencies, error) {

	repos := &Repositories{
		Keys:        repositories.NewApiKeysRepo(db.DB),
		OAuthState:  repositories.NewOAuthStateRepo(db.DB),
		Config:      repositories.NewIntegrationConfigRepo(db.PgDB),
		Connections: repositories.NewGuildConnectionRepo(db.PgDB),
		UserLinks:   repositories.NewUserLinkRepo(db.PgDB),
		RoleRules:   repositories.NewRoleRuleRepo(db.PgDB),
		SyncJobs:    repositories.NewSyncJobRepo(db.PgDB),
		UserGorm:    repositories.NewUserRepositoryGORM(db.PgDB),
	}

	redisClient := common.NewRedisClient()

	// Config lookups ride the shared cache; Redis keeps the eviction on a
	// config update visible to every process.
	var cache common.CacheInterface
	if os.Getenv("REDIS_CACHE") == "true" {
		cache = common.NewRedisCacheService(redisClient)
	} else {
		cache = common.NewCacheService(300, 600)
	}

	discordClient := discord.NewClient()
	resolver := common.NewEnvRedirectResolver()
	creds := services.NewCredentialSource(repos.Config, cache)

	urlSigner := common.NewURLSignerService(
		[]byte(os.Getenv("URL_SIGNER_SECRET")),
		redisClient,
	)

	linkSvc := services.NewLinkService(
		repos.OAuthState,
		repos.Connections,
		repos.UserLinks,
		repos.UserGorm,
		repos.SyncJobs,
		creds,
		discordClient,
		resolver,
	)

	roleSyncSvc := services.NewRoleSyncService(
		repos.UserLinks,
		repos.Connections,
		repos.RoleRules,
		creds,
		discordClient,
	)

	configSvc := services.NewIntegrationConfigService(repos.Config, creds, discordClient)

	svcs := &Services{
		Cache:     cache,
		Discord:   discordClient,
		Creds:     creds,
		Link:      linkSvc,
		RoleSync:  roleSyncSvc,
		Config:    configSvc,
		URLSigner: urlSigner,
		Resolver:  resolver,
	}

	return &Dependencies{
		Repo:     repos,
		Services: svcs,
		Metrics:  metricsReg,
	}, nil
}

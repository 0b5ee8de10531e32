package constants

type (
	RequestSource string
	APIStatus     string
	CachePrefix   string
)

const (
	RequestSourceAPI       RequestSource = "API"
	RequestSourceWebClient RequestSource = "WEB_CLIENT"

	APIStatusOk    APIStatus = "ok"
	APIStatusError APIStatus = "error"

	CachePrefixIntegrationConfig CachePrefix = "INTEG_CFG_"
	CachePrefixGuildConnection   CachePrefix = "GUILD_CONN_"
	CachePrefixGuildRoles        CachePrefix = "GUILD_ROLES_"
)

// OAuthStateTTL bounds the replay window between the authorize redirect
// and the callback. Consume rejects rows older than this.
const OAuthStateTTLMinutes = 15

// MaxSyncJobAttempts is the dead-letter threshold for role sync jobs.
const MaxSyncJobAttempts = 5

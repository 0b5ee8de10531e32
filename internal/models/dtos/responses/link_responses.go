package responses

import "time"

// StartLinkResponse carries the authorize URL the browser should be sent to.
type StartLinkResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// LinkCompleteResponse reports the persisted association after a callback.
type LinkCompleteResponse struct {
	OrgID         *string `json:"org_id,omitempty"`
	UserID        string  `json:"user_id"`
	DiscordUserID string  `json:"discord_user_id"`
	GuildID       string  `json:"guild_id"`
}

// InstallCompleteResponse reports a new guild connection.
type InstallCompleteResponse struct {
	OrgID     string `json:"org_id"`
	GuildID   string `json:"guild_id"`
	GuildName string `json:"guild_name"`
}

// LinkTokenView is the identity a redeemed link_token vouches for.
type LinkTokenView struct {
	UserID   string `json:"user_id"`
	OrgID    string `json:"org_id,omitempty"`
	ReturnTo string `json:"return_to"`
}

// SyncJobView is the API projection of a queued sync job.
type SyncJobView struct {
	ID        string     `json:"id"`
	OrgID     string     `json:"org_id"`
	UserID    string     `json:"user_id"`
	Reason    string     `json:"reason"`
	Status    string     `json:"status"`
	Attempts  int        `json:"attempts"`
	LastError *string    `json:"last_error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

// IntegrationConfigView never exposes stored secrets, only their presence.
type IntegrationConfigView struct {
	OrgID           string     `json:"org_id"`
	BotMode         string     `json:"bot_mode"`
	ClientID        string     `json:"client_id,omitempty"`
	HasClientSecret bool       `json:"has_client_secret"`
	HasBotToken     bool       `json:"has_bot_token"`
	IsEnabled       bool       `json:"is_enabled"`
	LastError       *string    `json:"last_error,omitempty"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
}

// RoleRuleView is the API projection of one role rule.
type RoleRuleView struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	SourceID  string  `json:"source_id"`
	GuildID   *string `json:"guild_id,omitempty"`
	RoleID    string  `json:"role_id"`
	RoleName  *string `json:"role_name,omitempty"`
	IsEnabled bool    `json:"is_enabled"`
}

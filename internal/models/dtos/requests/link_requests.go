package requests

// StartLinkRequest begins the user-link OAuth flow.
type StartLinkRequest struct {
	ReturnTo     string `json:"return_to"`
	CallbackPath string `json:"callback_path,omitempty"`
}

// StartInstallRequest begins the org-level guild connection flow.
type StartInstallRequest struct {
	ReturnTo     string `json:"return_to"`
	CallbackPath string `json:"callback_path,omitempty"`
}

// VerifyLinkTokenRequest redeems a single-use link_token from the
// post-link redirect.
type VerifyLinkTokenRequest struct {
	Token string `json:"token"`
}

// ReplaceRulesRequest atomically replaces the rule set for one
// (kind, source) scope. An empty Rules slice clears the scope.
type ReplaceRulesRequest struct {
	Rules []RuleInput `json:"rules"`
}

// RuleInput is one declarative role mapping.
type RuleInput struct {
	GuildID   *string `json:"guild_id,omitempty"`
	RoleID    string  `json:"role_id"`
	RoleName  *string `json:"role_name,omitempty"`
	IsEnabled bool    `json:"is_enabled"`
}

// UpdateIntegrationConfigRequest sets a tenant's bot mode and, for custom
// mode, the application credentials. Secrets arrive plaintext over TLS and
// are encrypted before they hit storage.
type UpdateIntegrationConfigRequest struct {
	BotMode      string `json:"bot_mode"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	BotToken     string `json:"bot_token,omitempty"`
	IsEnabled    *bool  `json:"is_enabled,omitempty"`
}

// EnqueueSyncRequest manually requests role resynchronization for a user.
// SourceIDs is the user's current entitlement sources; roles managed by
// rules outside this set are revoked.
type EnqueueSyncRequest struct {
	UserID    string   `json:"user_id"`
	SourceIDs []string `json:"source_ids"`
	Reason    string   `json:"reason,omitempty"`
}

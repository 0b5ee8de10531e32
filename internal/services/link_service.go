package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"communityos/guildlink/internal/common"
	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/db/repositories"
	"communityos/guildlink/internal/discord"
	"communityos/guildlink/internal/logging"
	"communityos/guildlink/internal/models/entities"
	models "communityos/guildlink/internal/models/gorm"

	"github.com/google/uuid"
)

const (
	defaultLinkCallbackPath    = "/api/v1/link/callback"
	defaultInstallCallbackPath = "/api/v1/install/callback"

	scopeTenantLink   = "identify"
	scopePlatformLink = "identify guilds.join"
	scopeInstall      = "identify bot"
)

// LinkResult is the outcome of a completed user link.
type LinkResult struct {
	OrgID         *string
	UserID        string
	DiscordUserID string
	GuildID       string
	ReturnTo      string
}

// InstallResult is the outcome of a completed guild connection.
type InstallResult struct {
	OrgID     string
	GuildID   string
	GuildName string
	ReturnTo  string
}

// LinkService drives the two-invocation OAuth flow. The only state shared
// between StartLink and CompleteLink is the durable oauth_states row; the
// two calls may land on different processes.
type LinkService struct {
	stateRepo *repositories.OAuthStateRepo
	connRepo  *repositories.GuildConnectionRepo
	linkRepo  *repositories.UserLinkRepo
	userRepo  *repositories.UserRepositoryGORM
	jobRepo   *repositories.SyncJobRepo
	creds     *CredentialSource
	discord   *discord.Client
	resolver  common.RedirectResolver

	// Fallback community for platform-wide (tenant-less) links.
	defaultGuildID string
}

// NewLinkService wires the link flow
func NewLinkService(
	stateRepo *repositories.OAuthStateRepo,
	connRepo *repositories.GuildConnectionRepo,
	linkRepo *repositories.UserLinkRepo,
	userRepo *repositories.UserRepositoryGORM,
	jobRepo *repositories.SyncJobRepo,
	creds *CredentialSource,
	discordClient *discord.Client,
	resolver common.RedirectResolver,
) *LinkService {
	return &LinkService{
		stateRepo:      stateRepo,
		connRepo:       connRepo,
		linkRepo:       linkRepo,
		userRepo:       userRepo,
		jobRepo:        jobRepo,
		creds:          creds,
		discord:        discordClient,
		resolver:       resolver,
		defaultGuildID: os.Getenv("DISCORD_DEFAULT_GUILD_ID"),
	}
}

// newStateToken returns a 256-bit random token, base64url encoded.
func newStateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// StartLink creates the durable state row and builds the authorize URL.
// Tenant-scoped links request the narrow "identify" scope; platform-wide
// links also request guilds.join.
func (s *LinkService) StartLink(ctx context.Context, orgID *string, userID, returnTo, callbackPath string) (string, string, error) {
	if callbackPath == "" {
		callbackPath = defaultLinkCallbackPath
	}

	redirectURI, err := s.resolver.CallbackURL(orgID, callbackPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to compute redirect URI: %w", err)
	}

	resolved, _, err := s.creds.Resolve(ctx, orgID)
	if err != nil {
		return "", "", err
	}

	token, err := newStateToken()
	if err != nil {
		return "", "", err
	}
	verifier, err := newStateToken()
	if err != nil {
		return "", "", err
	}

	state := &entities.OAuthState{
		State:        token,
		Kind:         constants.StateKindUserLink,
		OrgID:        orgID,
		UserID:       &userID,
		Verifier:     verifier,
		ReturnTo:     returnTo,
		CallbackPath: callbackPath,
	}
	if err := s.stateRepo.Create(ctx, state); err != nil {
		return "", "", err
	}

	scope := scopePlatformLink
	if orgID != nil {
		scope = scopeTenantLink
	}

	url := s.discord.AuthorizeURL(resolved.ClientID, redirectURI, scope, token)

	logging.Info("Link flow started",
		"user_id", userID,
		"org_id", derefOrEmpty(orgID),
		"scope", scope,
	)

	return url, token, nil
}

// CompleteLink consumes the state, exchanges the code, resolves the
// external identity, verifies membership for tenant-scoped links, and
// persists the association. Any failure before the upsert leaves no
// partial UserLink behind.
func (s *LinkService) CompleteLink(ctx context.Context, stateToken, code string) (*LinkResult, error) {
	state, err := s.stateRepo.Consume(ctx, stateToken)
	if err != nil {
		return nil, mapConsumeError(err)
	}
	if state.Kind != constants.StateKindUserLink || state.UserID == nil {
		return nil, ErrStateInvalid
	}

	// The redirect URI must byte-match the one used at authorize time.
	redirectURI, err := s.resolver.CallbackURL(state.OrgID, state.CallbackPath)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute redirect URI: %w", err)
	}

	resolved, _, err := s.creds.Resolve(ctx, state.OrgID)
	if err != nil {
		return nil, err
	}

	token, err := s.discord.ExchangeCode(ctx, resolved.ClientID, resolved.ClientSecret, code, redirectURI)
	if err != nil {
		return nil, err
	}

	identity, err := s.discord.CurrentUser(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	guildID, err := s.targetGuild(ctx, state.OrgID)
	if err != nil {
		return nil, err
	}

	if state.OrgID != nil {
		isMember, _, err := s.discord.GuildMember(ctx, resolved.BotToken, guildID, identity.ID)
		if err != nil {
			return nil, err
		}
		if !isMember {
			logging.Info("Link denied, not a guild member",
				"user_id", *state.UserID,
				"org_id", *state.OrgID,
				"guild_id", guildID,
			)
			return nil, ErrMembershipDenied
		}
	}

	link := &models.UserLink{
		ID:            uuid.New().String(),
		OrgID:         state.OrgID,
		UserID:        *state.UserID,
		DiscordUserID: identity.ID,
	}
	if err := s.linkRepo.Upsert(ctx, link); err != nil {
		return nil, err
	}

	if state.OrgID != nil {
		if err := s.userRepo.SetDiscordLinked(ctx, *state.UserID, true); err != nil {
			// The link row exists; the derived flag is reconciled by the
			// next sync run, so log instead of failing the callback.
			logging.Error("Failed to flip discord_linked flag",
				"user_id", *state.UserID,
				"error", err.Error(),
			)
		}

		if err := s.enqueueLinkSync(ctx, *state.OrgID, *state.UserID); err != nil {
			logging.Error("Failed to enqueue post-link sync job",
				"user_id", *state.UserID,
				"error", err.Error(),
			)
		}
	}

	logging.Info("Link flow completed",
		"user_id", *state.UserID,
		"org_id", derefOrEmpty(state.OrgID),
		"discord_user_id", identity.ID,
	)

	return &LinkResult{
		OrgID:         state.OrgID,
		UserID:        *state.UserID,
		DiscordUserID: identity.ID,
		GuildID:       guildID,
		ReturnTo:      state.ReturnTo,
	}, nil
}

// StartInstall begins the org-level guild connection flow.
func (s *LinkService) StartInstall(ctx context.Context, orgID, returnTo, callbackPath string) (string, string, error) {
	if callbackPath == "" {
		callbackPath = defaultInstallCallbackPath
	}

	redirectURI, err := s.resolver.CallbackURL(&orgID, callbackPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to compute redirect URI: %w", err)
	}

	resolved, _, err := s.creds.Resolve(ctx, &orgID)
	if err != nil {
		return "", "", err
	}

	token, err := newStateToken()
	if err != nil {
		return "", "", err
	}
	verifier, err := newStateToken()
	if err != nil {
		return "", "", err
	}

	state := &entities.OAuthState{
		State:        token,
		Kind:         constants.StateKindOrgInstall,
		OrgID:        &orgID,
		Verifier:     verifier,
		ReturnTo:     returnTo,
		CallbackPath: callbackPath,
	}
	if err := s.stateRepo.Create(ctx, state); err != nil {
		return "", "", err
	}

	url := s.discord.AuthorizeURL(resolved.ClientID, redirectURI, scopeInstall, token)
	return url, token, nil
}

// CompleteInstall records the guild connection. Discord appends guild_id
// to the callback query when the bot is added to a server.
func (s *LinkService) CompleteInstall(ctx context.Context, stateToken, code, guildID string) (*InstallResult, error) {
	state, err := s.stateRepo.Consume(ctx, stateToken)
	if err != nil {
		return nil, mapConsumeError(err)
	}
	if state.Kind != constants.StateKindOrgInstall || state.OrgID == nil {
		return nil, ErrStateInvalid
	}
	if guildID == "" {
		return nil, fmt.Errorf("install callback missing guild_id")
	}

	redirectURI, err := s.resolver.CallbackURL(state.OrgID, state.CallbackPath)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute redirect URI: %w", err)
	}

	resolved, mode, err := s.creds.Resolve(ctx, state.OrgID)
	if err != nil {
		return nil, err
	}

	if _, err := s.discord.ExchangeCode(ctx, resolved.ClientID, resolved.ClientSecret, code, redirectURI); err != nil {
		return nil, err
	}

	guildName := ""
	if guild, err := s.discord.Guild(ctx, resolved.BotToken, guildID); err == nil {
		guildName = guild.Name
	}

	conn := &models.GuildConnection{
		ID:               uuid.New().String(),
		OrgID:            *state.OrgID,
		GuildID:          guildID,
		GuildName:        guildName,
		BotModeAtConnect: mode,
	}
	if err := s.connRepo.Upsert(ctx, conn); err != nil {
		return nil, err
	}

	logging.Info("Guild connected",
		"org_id", *state.OrgID,
		"guild_id", guildID,
		"bot_mode", mode.String(),
	)

	return &InstallResult{
		OrgID:     *state.OrgID,
		GuildID:   guildID,
		GuildName: guildName,
		ReturnTo:  state.ReturnTo,
	}, nil
}

// targetGuild picks the community a link binds to: the tenant's most
// recently connected guild, or the platform default for tenant-less links.
func (s *LinkService) targetGuild(ctx context.Context, orgID *string) (string, error) {
	if orgID == nil {
		if s.defaultGuildID == "" {
			return "", fmt.Errorf("DISCORD_DEFAULT_GUILD_ID is not set")
		}
		return s.defaultGuildID, nil
	}

	latest, err := s.connRepo.Latest(ctx, *orgID)
	if err != nil {
		return "", err
	}
	if latest == nil {
		return "", ErrNoGuildConnected
	}
	return latest.GuildID, nil
}

func (s *LinkService) enqueueLinkSync(ctx context.Context, orgID, userID string) error {
	payload, _ := json.Marshal(map[string]interface{}{"trigger": "link"})

	return s.jobRepo.Enqueue(ctx, &models.SyncJob{
		ID:      uuid.New().String(),
		OrgID:   orgID,
		UserID:  userID,
		Reason:  constants.SyncReasonManual,
		Payload: string(payload),
	})
}

// mapConsumeError translates state-store failures into flow sentinels.
func mapConsumeError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrStateNotFound):
		return ErrStateInvalid
	case errors.Is(err, repositories.ErrStateExpired):
		return ErrStateExpired
	default:
		return err
	}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

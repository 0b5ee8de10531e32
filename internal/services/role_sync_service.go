package services

import (
	"context"
	"encoding/json"
	"fmt"

	"communityos/guildlink/internal/db/repositories"
	"communityos/guildlink/internal/discord"
	"communityos/guildlink/internal/logging"
	models "communityos/guildlink/internal/models/gorm"
)

// syncPayload is the job payload written at enqueue time. SourceIDs is the
// user's current entitlement sources (product and tag ids); the link
// trigger enqueues without sources and syncs against an empty set.
type syncPayload struct {
	SourceIDs []string `json:"source_ids"`
	Trigger   string   `json:"trigger,omitempty"`
}

// SyncResult reports what a sync pass changed.
type SyncResult struct {
	GuildID      string
	RolesAdded   []string
	RolesRemoved []string
	Skipped      bool
	SkipReason   string
}

// RoleSyncService reconciles a user's Discord roles with their current
// entitlements. It only ever touches roles referenced by the tenant's rule
// set; roles granted by moderators outside this system are left alone.
type RoleSyncService struct {
	linkRepo *repositories.UserLinkRepo
	connRepo *repositories.GuildConnectionRepo
	ruleRepo *repositories.RoleRuleRepo
	creds    *CredentialSource
	discord  *discord.Client
}

// NewRoleSyncService wires the sync pass
func NewRoleSyncService(
	linkRepo *repositories.UserLinkRepo,
	connRepo *repositories.GuildConnectionRepo,
	ruleRepo *repositories.RoleRuleRepo,
	creds *CredentialSource,
	discordClient *discord.Client,
) *RoleSyncService {
	return &RoleSyncService{
		linkRepo: linkRepo,
		connRepo: connRepo,
		ruleRepo: ruleRepo,
		creds:    creds,
		discord:  discordClient,
	}
}

// ProcessJob runs one full reconcile for the job's user. The pass is
// idempotent: running it twice with the same inputs is a no-op the second
// time. A returned error means the attempt should be retried.
func (s *RoleSyncService) ProcessJob(ctx context.Context, job *models.SyncJob) (*SyncResult, error) {
	var payload syncPayload
	if job.Payload != "" {
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return nil, fmt.Errorf("malformed job payload: %w", err)
		}
	}

	link, err := s.linkRepo.GetByUser(ctx, &job.OrgID, job.UserID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		// The user unlinked between enqueue and processing. Nothing to
		// reconcile against, so the job succeeds vacuously.
		return &SyncResult{Skipped: true, SkipReason: "user not linked"}, nil
	}

	conn, err := s.connRepo.Latest(ctx, job.OrgID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrNoGuildConnected
	}

	resolved, _, err := s.creds.Resolve(ctx, &job.OrgID)
	if err != nil {
		return nil, err
	}

	isMember, member, err := s.discord.GuildMember(ctx, resolved.BotToken, conn.GuildID, link.DiscordUserID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		logging.Info("Sync skipped, user left the guild",
			"org_id", job.OrgID,
			"user_id", job.UserID,
			"guild_id", conn.GuildID,
		)
		return &SyncResult{GuildID: conn.GuildID, Skipped: true, SkipReason: "not a guild member"}, nil
	}

	desired, err := s.desiredRoles(ctx, job.OrgID, conn.GuildID, payload.SourceIDs)
	if err != nil {
		return nil, err
	}

	managed, err := s.managedRoles(ctx, job.OrgID, conn.GuildID)
	if err != nil {
		return nil, err
	}

	current := make(map[string]bool, len(member.Roles))
	for _, roleID := range member.Roles {
		current[roleID] = true
	}

	result := &SyncResult{GuildID: conn.GuildID}

	for roleID := range desired {
		if current[roleID] {
			continue
		}
		if err := s.discord.AddMemberRole(ctx, resolved.BotToken, conn.GuildID, link.DiscordUserID, roleID); err != nil {
			return nil, err
		}
		result.RolesAdded = append(result.RolesAdded, roleID)
	}

	// Only roles the rule set manages are ever removed.
	for roleID := range managed {
		if desired[roleID] || !current[roleID] {
			continue
		}
		if err := s.discord.RemoveMemberRole(ctx, resolved.BotToken, conn.GuildID, link.DiscordUserID, roleID); err != nil {
			return nil, err
		}
		result.RolesRemoved = append(result.RolesRemoved, roleID)
	}

	logging.Info("Role sync completed",
		"org_id", job.OrgID,
		"user_id", job.UserID,
		"guild_id", conn.GuildID,
		"added", len(result.RolesAdded),
		"removed", len(result.RolesRemoved),
	)

	return result, nil
}

// desiredRoles is the union of the enabled rules matching the user's
// entitlement sources. A user with two products mapping to the same role
// still gets the role once, and losing one product does not remove it.
func (s *RoleSyncService) desiredRoles(ctx context.Context, orgID, guildID string, sourceIDs []string) (map[string]bool, error) {
	desired := make(map[string]bool)
	if len(sourceIDs) == 0 {
		return desired, nil
	}

	grouped, err := s.ruleRepo.LookupRules(ctx, orgID, sourceIDs)
	if err != nil {
		return nil, err
	}

	for _, rules := range grouped {
		for _, rule := range rules {
			if ruleAppliesTo(rule, guildID) {
				desired[rule.RoleID] = true
			}
		}
	}
	return desired, nil
}

// managedRoles is every role any enabled rule in the tenant could grant in
// this guild. The removal pass is restricted to this set.
func (s *RoleSyncService) managedRoles(ctx context.Context, orgID, guildID string) (map[string]bool, error) {
	rules, err := s.ruleRepo.ListEnabledByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	managed := make(map[string]bool, len(rules))
	for _, rule := range rules {
		if ruleAppliesTo(rule, guildID) {
			managed[rule.RoleID] = true
		}
	}
	return managed, nil
}

// ruleAppliesTo restricts a rule to its guild when one is set; a nil guild
// id means the rule covers every connected guild.
func ruleAppliesTo(rule models.RoleRule, guildID string) bool {
	return rule.GuildID == nil || *rule.GuildID == guildID
}

package gorm

import (
	"time"

	"communityos/guildlink/internal/constants"
)

// RoleRule maps an internal entitlement source (a product or a marketing
// tag) to a Discord role. A nil GuildID applies the rule to every guild
// connected to the tenant. Rule sets are replaced atomically per
// (org, kind, source), never merged.
type RoleRule struct {
	ID        string             `gorm:"column:id;primaryKey"`
	OrgID     string             `gorm:"column:org_id;index:idx_rules_scope"`
	Kind      constants.RuleKind `gorm:"column:kind;index:idx_rules_scope"`
	SourceID  string             `gorm:"column:source_id;index:idx_rules_scope"`
	GuildID   *string            `gorm:"column:guild_id"`
	RoleID    string             `gorm:"column:role_id"`
	RoleName  *string            `gorm:"column:role_name"`
	IsEnabled bool               `gorm:"column:is_enabled;default:true"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (RoleRule) TableName() string {
	return "role_rules"
}

package gorm

import (
	"time"

	"communityos/guildlink/internal/constants"
)

// GuildConnection ties a tenant to a Discord server. BotModeAtConnect is
// frozen when the connection is made; later config changes do not rewrite
// history.
type GuildConnection struct {
	ID               string            `gorm:"column:id;primaryKey"`
	OrgID            string            `gorm:"column:org_id;index;uniqueIndex:idx_org_guild"`
	GuildID          string            `gorm:"column:guild_id;uniqueIndex:idx_org_guild"`
	GuildName        string            `gorm:"column:guild_name"`
	BotModeAtConnect constants.BotMode `gorm:"column:bot_mode_at_connect"`
	ConnectedAt      time.Time         `gorm:"column:connected_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (GuildConnection) TableName() string {
	return "guild_connections"
}

package gorm

import "time"

// UserLink associates one internal user with one Discord identity.
// Upsert is idempotent on (org_id, user_id).
type UserLink struct {
	ID            string    `gorm:"column:id;primaryKey"`
	OrgID         *string   `gorm:"column:org_id;uniqueIndex:idx_org_user"`
	UserID        string    `gorm:"column:user_id;uniqueIndex:idx_org_user"`
	DiscordUserID string    `gorm:"column:discord_user_id;index"`
	LinkedAt      time.Time `gorm:"column:linked_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (UserLink) TableName() string {
	return "user_links"
}

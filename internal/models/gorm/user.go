package gorm

import "time"

// User is the internal account. DiscordLinked is the derived entitlement
// flag flipped when a tenant-scoped link completes.
type User struct {
	ID            string    `gorm:"column:id;primaryKey"`
	OrgID         *string   `gorm:"column:org_id;index"`
	Email         *string   `gorm:"column:email"`
	DiscordLinked bool      `gorm:"column:discord_linked;default:false"`
	IsActive      bool      `gorm:"column:is_active;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

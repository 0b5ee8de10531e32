package repositories

import (
	"context"
	"fmt"

	models "communityos/guildlink/internal/models/gorm"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GuildConnectionRepo manages tenant to Discord-server connections
type GuildConnectionRepo struct {
	db *gorm.DB
}

// NewGuildConnectionRepo creates a new guild connection repository
func NewGuildConnectionRepo(db *gorm.DB) *GuildConnectionRepo {
	return &GuildConnectionRepo{db: db}
}

// Upsert records a connection. At most one row exists per (org, guild);
// reconnecting refreshes the display name and connected_at, so Latest
// tracks the newest install, but keeps the original bot_mode_at_connect
// frozen.
func (r *GuildConnectionRepo) Upsert(ctx context.Context, conn *models.GuildConnection) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "org_id"},
				{Name: "guild_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"guild_name", "connected_at"}),
		}).
		Create(conn).Error

	if err != nil {
		return fmt.Errorf("failed to upsert guild connection: %w", err)
	}
	return nil
}

// Latest returns the tenant's most recently connected guild, or nil when
// none is connected.
func (r *GuildConnectionRepo) Latest(ctx context.Context, orgID string) (*models.GuildConnection, error) {
	var conn models.GuildConnection

	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("connected_at DESC").
		First(&conn).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch latest guild connection: %w", err)
	}

	return &conn, nil
}

// ListByOrgID returns all guilds connected to a tenant, newest first.
func (r *GuildConnectionRepo) ListByOrgID(ctx context.Context, orgID string) ([]models.GuildConnection, error) {
	var conns []models.GuildConnection

	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("connected_at DESC").
		Find(&conns).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list guild connections: %w", err)
	}

	return conns, nil
}

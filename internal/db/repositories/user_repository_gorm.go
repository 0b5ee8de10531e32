package repositories

import (
	"context"
	"fmt"

	gormModels "communityos/guildlink/internal/models/gorm"

	"gorm.io/gorm"
)

type UserRepositoryGORM struct {
	db *gorm.DB
}

// NewUserRepositoryGORM creates a new GORM-based user repository
func NewUserRepositoryGORM(db *gorm.DB) *UserRepositoryGORM {
	return &UserRepositoryGORM{db: db}
}

// GetByID retrieves a user without relationships
func (r *UserRepositoryGORM) GetByID(ctx context.Context, id string) (*gormModels.User, error) {
	var user gormModels.User

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return &user, nil
}

// SetDiscordLinked flips the derived entitlement flag after a
// tenant-scoped link completes or is removed.
func (r *UserRepositoryGORM) SetDiscordLinked(ctx context.Context, userID string, linked bool) error {
	err := r.db.WithContext(ctx).
		Model(&gormModels.User{}).
		Where("id = ?", userID).
		Update("discord_linked", linked).Error

	if err != nil {
		return fmt.Errorf("failed to update discord_linked: %w", err)
	}
	return nil
}

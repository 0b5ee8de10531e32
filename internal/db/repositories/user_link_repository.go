package repositories

import (
	"context"
	"fmt"
	"time"

	models "communityos/guildlink/internal/models/gorm"

	"gorm.io/gorm"
)

// UserLinkRepo manages internal-user to Discord-identity associations
type UserLinkRepo struct {
	db *gorm.DB
}

// NewUserLinkRepo creates a new user link repository
func NewUserLinkRepo(db *gorm.DB) *UserLinkRepo {
	return &UserLinkRepo{db: db}
}

// Upsert idempotently writes the link for (org, user). Re-linking the same
// user points the row at the new Discord identity instead of adding a
// second one. Find-then-save runs in a transaction because the unique
// index treats NULL org ids as distinct.
func (r *UserLinkRepo) Upsert(ctx context.Context, link *models.UserLink) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.UserLink

		q := tx.Where("user_id = ?", link.UserID)
		if link.OrgID != nil {
			q = q.Where("org_id = ?", *link.OrgID)
		} else {
			q = q.Where("org_id IS NULL")
		}

		err := q.First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if createErr := tx.Create(link).Error; createErr != nil {
				return fmt.Errorf("failed to create user link: %w", createErr)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up user link: %w", err)
		}

		existing.DiscordUserID = link.DiscordUserID
		existing.UpdatedAt = time.Now().UTC()
		if saveErr := tx.Save(&existing).Error; saveErr != nil {
			return fmt.Errorf("failed to update user link: %w", saveErr)
		}

		*link = existing
		return nil
	})
}

// GetByUser returns the link for (org, user), or nil when the user has not
// linked yet.
func (r *UserLinkRepo) GetByUser(ctx context.Context, orgID *string, userID string) (*models.UserLink, error) {
	var link models.UserLink

	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if orgID != nil {
		q = q.Where("org_id = ?", *orgID)
	} else {
		q = q.Where("org_id IS NULL")
	}

	err := q.First(&link).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch user link: %w", err)
	}

	return &link, nil
}

// Delete removes a link, used when a user disconnects their account.
func (r *UserLinkRepo) Delete(ctx context.Context, orgID *string, userID string) error {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if orgID != nil {
		q = q.Where("org_id = ?", *orgID)
	} else {
		q = q.Where("org_id IS NULL")
	}

	if err := q.Delete(&models.UserLink{}).Error; err != nil {
		return fmt.Errorf("failed to delete user link: %w", err)
	}
	return nil
}

package repositories

import (
	"context"
	"fmt"
	"time"

	models "communityos/guildlink/internal/models/gorm"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IntegrationConfigRepo manages per-tenant Discord application settings
type IntegrationConfigRepo struct {
	db *gorm.DB
}

// NewIntegrationConfigRepo creates a new integration config repository
func NewIntegrationConfigRepo(db *gorm.DB) *IntegrationConfigRepo {
	return &IntegrationConfigRepo{db: db}
}

// GetByOrgID retrieves a tenant's config. Returns (nil, nil) when the
// tenant has never configured the integration.
func (r *IntegrationConfigRepo) GetByOrgID(ctx context.Context, orgID string) (*models.IntegrationConfig, error) {
	var config models.IntegrationConfig

	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		First(&config).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch integration config: %w", err)
	}

	return &config, nil
}

// Upsert inserts or replaces the tenant's config row
// ON CONFLICT (org_id) DO UPDATE
func (r *IntegrationConfigRepo) Upsert(ctx context.Context, config *models.IntegrationConfig) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "org_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"bot_mode", "client_id",
				"encrypted_client_secret", "encrypted_bot_token",
				"is_enabled", "updated_at",
			}),
		}).
		Create(config).Error

	if err != nil {
		return fmt.Errorf("failed to upsert integration config: %w", err)
	}
	return nil
}

// SetValidation records the outcome of a credential validation run.
func (r *IntegrationConfigRepo) SetValidation(ctx context.Context, orgID string, lastError *string) error {
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).
		Model(&models.IntegrationConfig{}).
		Where("org_id = ?", orgID).
		Updates(map[string]interface{}{
			"last_error":        lastError,
			"last_validated_at": &now,
		}).Error

	if err != nil {
		return fmt.Errorf("failed to record validation: %w", err)
	}
	return nil
}

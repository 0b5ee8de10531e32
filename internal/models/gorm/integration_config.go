package gorm

import (
	"time"

	"communityos/guildlink/internal/constants"
)

// IntegrationConfig holds a tenant's Discord application settings. Secrets
// are stored as vault envelopes, never plaintext. The EncClientSecretOld
// and EncBotTokenOld columns carry the pre-migration names still populated
// on older tenants.
type IntegrationConfig struct {
	ID                 string            `gorm:"column:id;primaryKey"`
	OrgID              string            `gorm:"column:org_id;uniqueIndex"`
	BotMode            constants.BotMode `gorm:"column:bot_mode;default:global"`
	ClientID           string            `gorm:"column:client_id"`
	EncClientSecret    string            `gorm:"column:encrypted_client_secret"`
	EncClientSecretOld string            `gorm:"column:client_secret_enc"`
	EncBotToken        string            `gorm:"column:encrypted_bot_token"`
	EncBotTokenOld     string            `gorm:"column:bot_token_enc"`
	IsEnabled          bool              `gorm:"column:is_enabled;default:true"`
	LastError          *string           `gorm:"column:last_error"`
	LastValidatedAt    *time.Time        `gorm:"column:last_validated_at"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (IntegrationConfig) TableName() string {
	return "integration_configs"
}

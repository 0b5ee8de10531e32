package gorm

import (
	"time"

	"communityos/guildlink/internal/constants"
)

// SyncJob is one unit of deferred role resynchronization work. Jobs move
// pending -> processing -> done|failed; failed jobs keep attempts and
// last_error for diagnosis. NextAttemptAt implements exponential backoff
// between retries.
type SyncJob struct {
	ID            string               `gorm:"column:id;primaryKey"`
	OrgID         string               `gorm:"column:org_id;index"`
	UserID        string               `gorm:"column:user_id;index"`
	Reason        constants.SyncReason `gorm:"column:reason"`
	Payload       string               `gorm:"column:payload"`
	Status        constants.JobStatus  `gorm:"column:status;index;default:pending"`
	Attempts      int                  `gorm:"column:attempts;default:0"`
	LastError     *string              `gorm:"column:last_error"`
	NextAttemptAt *time.Time           `gorm:"column:next_attempt_at"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (SyncJob) TableName() string {
	return "sync_jobs"
}

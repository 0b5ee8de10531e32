package constants

import (
	"database/sql/driver"
	"fmt"
)

// BotMode mirrors the Postgres ENUM 'bot_mode'
type BotMode string

const (
	BotModeGlobal BotMode = "global"
	BotModeCustom BotMode = "custom"
)

func (m BotMode) String() string { return string(m) }

// Scan implements the sql.Scanner interface
func (m *BotMode) Scan(src interface{}) error {
	if src == nil {
		*m = ""
		return nil
	}
	switch v := src.(type) {
	case string:
		*m = BotMode(v)
	case []byte:
		*m = BotMode(v)
	default:
		return fmt.Errorf("BotMode: cannot scan type %T", src)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (m BotMode) Value() (driver.Value, error) { return string(m), nil }

// StateKind distinguishes the two OAuth redirect flows sharing one state table
type StateKind string

const (
	StateKindOrgInstall StateKind = "org_install"
	StateKindUserLink   StateKind = "user_link"
)

func (k StateKind) String() string { return string(k) }

// Scan implements the sql.Scanner interface
func (k *StateKind) Scan(src interface{}) error {
	if src == nil {
		*k = ""
		return nil
	}
	switch v := src.(type) {
	case string:
		*k = StateKind(v)
	case []byte:
		*k = StateKind(v)
	default:
		return fmt.Errorf("StateKind: cannot scan type %T", src)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (k StateKind) Value() (driver.Value, error) { return string(k), nil }

// RuleKind is the internal entitlement source a role rule maps from
type RuleKind string

const (
	RuleKindProduct      RuleKind = "product"
	RuleKindMarketingTag RuleKind = "marketingTag"
)

func (k RuleKind) String() string { return string(k) }

// SyncReason records which entitlement-changing event enqueued a sync job
type SyncReason string

const (
	SyncReasonPurchase  SyncReason = "purchase"
	SyncReasonTagChange SyncReason = "tagChange"
	SyncReasonManual    SyncReason = "manual"
)

func (r SyncReason) String() string { return string(r) }

// JobStatus is the sync job lifecycle state
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

func (s JobStatus) String() string { return string(s) }

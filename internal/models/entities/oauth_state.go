package entities

import (
	"time"

	"communityos/guildlink/internal/constants"
)

// OAuthState is the persisted continuation bridging the two HTTP requests
// of an OAuth redirect flow. Rows are single-use: Consume deletes on read.
type OAuthState struct {
	State        string              `db:"state"`
	Kind         constants.StateKind `db:"kind"`
	OrgID        *string             `db:"org_id"`
	UserID       *string             `db:"user_id"`
	Verifier     string              `db:"verifier"`
	ReturnTo     string              `db:"return_to"`
	CallbackPath string              `db:"callback_path"`
	CreatedAt    time.Time           `db:"created_at"`
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/models/entities"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrStateNotFound means the token was never issued or was already
	// consumed. The anti-replay guarantee rests on this.
	ErrStateNotFound = errors.New("oauth state not found")

	// ErrStateExpired means the token existed but sat longer than the TTL.
	ErrStateExpired = errors.New("oauth state expired")
)

type OAuthStateRepo struct {
	db  *sqlx.DB
	ttl time.Duration
}

func NewOAuthStateRepo(db *sqlx.DB) *OAuthStateRepo {
	return &OAuthStateRepo{
		db:  db,
		ttl: constants.OAuthStateTTLMinutes * time.Minute,
	}
}

// Create inserts a new state row. The caller supplies the token;
// it must come from a CSPRNG with at least 128 bits of entropy.
func (r *OAuthStateRepo) Create(ctx context.Context, state *entities.OAuthState) error {
	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now().UTC()
	}

	if _, err := r.db.NamedExecContext(ctx, constants.InsertOAuthState, state); err != nil {
		return fmt.Errorf("insert oauth state: %w", err)
	}
	return nil
}

// Consume atomically reads and deletes the row for the token in a single
// DELETE ... RETURNING statement, so two concurrent callbacks cannot both
// succeed. An expired row is still deleted but reported as ErrStateExpired.
func (r *OAuthStateRepo) Consume(ctx context.Context, token string) (*entities.OAuthState, error) {
	var state entities.OAuthState

	err := r.db.QueryRowxContext(ctx, r.db.Rebind(constants.ConsumeOAuthState), token).StructScan(&state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}

	if time.Since(state.CreatedAt) > r.ttl {
		return nil, ErrStateExpired
	}

	return &state, nil
}

// DeleteExpired purges rows past the TTL. Run periodically so abandoned
// authorize redirects do not accumulate.
func (r *OAuthStateRepo) DeleteExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-r.ttl)

	res, err := r.db.ExecContext(ctx, r.db.Rebind(constants.DeleteExpiredOAuthStates), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired oauth states: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count purged oauth states: %w", err)
	}
	return n, nil
}

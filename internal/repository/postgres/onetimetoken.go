package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nrs-org/nrs-auth/internal/model"
)

var _ model.OneTimeTokenStore = (*OneTimeTokenRepository)(nil)

type OneTimeTokenRepository struct {
	db *Connection
}

func NewOneTimeTokenRepository(db *Connection) *OneTimeTokenRepository {
	return &OneTimeTokenRepository{db: db}
}

// Create marks any live token for the same (user, purpose) pair as used and
// inserts the new row, both inside one transaction. If a concurrent issuance
// wins the race past the supersede, the live-subset unique index rejects the
// insert and the caller gets ErrTokenIssuanceConflict.
func (r *OneTimeTokenRepository) Create(ctx context.Context, token model.OneTimeToken) error {
	const supersede = `
        UPDATE user_one_time_token SET last_used_at = NOW()
        WHERE user_id = $1 AND purpose = $2 AND last_used_at IS NULL
    `
	const insert = `
        INSERT INTO user_one_time_token (user_id, purpose, token_hash, expires_at, request_ip, user_agent)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	err := r.db.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.db.q(ctx).Exec(ctx, supersede, token.UserID, token.Purpose); err != nil {
			return fmt.Errorf("failed to supersede live token: %w", err)
		}
		if _, err := r.db.q(ctx).Exec(ctx, insert,
			token.UserID, token.Purpose, token.TokenHash,
			token.ExpiresAt, token.RequestIP, token.UserAgent,
		); err != nil {
			if uniqueViolation(err) != "" {
				return model.ErrTokenIssuanceConflict
			}
			return fmt.Errorf("failed to insert token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

// Consume atomically marks the live, unexpired row matching (tokenHash,
// purpose) as used and returns its owner. The conditional update is the
// single point of consumption: under concurrent redemption exactly one
// caller gets the row, everyone else is classified against the row state.
func (r *OneTimeTokenRepository) Consume(ctx context.Context, tokenHash string, purpose model.TokenPurpose, now time.Time) (uuid.UUID, error) {
	const consume = `
        UPDATE user_one_time_token SET last_used_at = NOW()
        WHERE token_hash = $1 AND purpose = $2 AND last_used_at IS NULL AND expires_at > $3
        RETURNING user_id
    `

	var userID uuid.UUID
	err := r.db.q(ctx).QueryRow(ctx, consume, tokenHash, purpose, now).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("failed to consume token: %w", err)
	}

	return uuid.Nil, r.classifyConsumeFailure(ctx, tokenHash, purpose, now)
}

// classifyConsumeFailure turns a missed conditional update into the typed
// reason: absent or purpose-mismatched, already used, or expired.
func (r *OneTimeTokenRepository) classifyConsumeFailure(ctx context.Context, tokenHash string, purpose model.TokenPurpose, now time.Time) error {
	const query = `
        SELECT expires_at, last_used_at FROM user_one_time_token
        WHERE token_hash = $1 AND purpose = $2
    `

	var expiresAt time.Time
	var lastUsedAt *time.Time
	err := r.db.q(ctx).QueryRow(ctx, query, tokenHash, purpose).Scan(&expiresAt, &lastUsedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return model.ErrTokenNotFound
	case err != nil:
		return fmt.Errorf("failed to inspect token: %w", err)
	case lastUsedAt != nil:
		return model.ErrTokenAlreadyUsed
	case !expiresAt.After(now):
		return model.ErrTokenExpired
	default:
		// the row became consumable between the two statements; the
		// caller may retry with the same raw token
		return model.ErrTokenNotFound
	}
}

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

var _ model.SessionStore = (*SessionRepository)(nil)

type SessionRepository struct {
	db *Connection
}

func NewSessionRepository(db *Connection) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, user_id, token_hash, user_agent, ip, expires_at, created_at, updated_at`

func scanSession(row pgx.Row) (model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IP,
		&s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (r *SessionRepository) Create(ctx context.Context, session model.Session) (model.Session, error) {
	const query = `
        INSERT INTO user_session (user_id, token_hash, user_agent, ip, expires_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + sessionColumns

	saved, err := scanSession(r.db.q(ctx).QueryRow(ctx, query,
		session.UserID, session.TokenHash, session.UserAgent, session.IP, session.ExpiresAt,
	))
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return saved, nil
}

func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM user_session WHERE token_hash = $1`

	s, err := scanSession(r.db.q(ctx).QueryRow(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Session{}, model.ErrNotFound
		}
		return model.Session{}, fmt.Errorf("failed to get session by token hash: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) ExtendExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	const query = `UPDATE user_session SET expires_at = $2 WHERE id = $1`

	if _, err := r.db.q(ctx).Exec(ctx, query, id, expiresAt); err != nil {
		return fmt.Errorf("failed to extend session expiry: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting an already-absent session is not an
// error.
func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM user_session WHERE id = $1`

	if _, err := r.db.q(ctx).Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID) error {
	const query = `DELETE FROM user_session WHERE user_id = $1`

	if _, err := r.db.q(ctx).Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete sessions by user: %w", err)
	}
	return nil
}

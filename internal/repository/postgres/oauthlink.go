package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nrs-org/nrs-auth/internal/model"
)

var _ model.OAuthLinkStore = (*OAuthLinkRepository)(nil)

type OAuthLinkRepository struct {
	db *Connection
}

func NewOAuthLinkRepository(db *Connection) *OAuthLinkRepository {
	return &OAuthLinkRepository{db: db}
}

const oauthLinkColumns = `id, user_id, provider, provider_user_id, issuer, access_token,
        refresh_token, access_token_expires_at, revoked_at, created_at, updated_at`

func scanOAuthLink(row pgx.Row) (model.OAuthLink, error) {
	var l model.OAuthLink
	err := row.Scan(
		&l.ID, &l.UserID, &l.Provider, &l.ExternalID, &l.Issuer,
		&l.AccessTokenEnc, &l.RefreshTokenEnc, &l.AccessTokenExpiresAt,
		&l.RevokedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// Create inserts a link with re-link semantics: within one transaction it
// rejects the insert when the external identity is live under a different
// user, revokes the user's own live link for the provider, and inserts the
// fresh row. The live-subset unique indexes backstop the check; a lost race
// surfaces as ErrDuplicateOAuthLink.
func (r *OAuthLinkRepository) Create(ctx context.Context, link model.OAuthLink) (model.OAuthLink, error) {
	const guard = `
        SELECT user_id FROM app_user_oauth_link
        WHERE provider = $1 AND provider_user_id = $2 AND revoked_at IS NULL
        FOR UPDATE
    `
	const insert = `
        INSERT INTO app_user_oauth_link (id, user_id, provider, provider_user_id, issuer,
            access_token, refresh_token, access_token_expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING ` + oauthLinkColumns

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}

	var saved model.OAuthLink
	err := r.db.WithinTx(ctx, func(ctx context.Context) error {
		var ownerID uuid.UUID
		err := r.db.q(ctx).QueryRow(ctx, guard, link.Provider, link.ExternalID).Scan(&ownerID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// external identity is unlinked
		case err != nil:
			return fmt.Errorf("failed to check existing link: %w", err)
		case ownerID != link.UserID:
			return model.ErrExternalIdentityAlreadyLinked
		}

		if err := r.revokeByUserProvider(ctx, link.UserID, link.Provider); err != nil {
			return err
		}

		saved, err = scanOAuthLink(r.db.q(ctx).QueryRow(ctx, insert,
			link.ID, link.UserID, link.Provider, link.ExternalID, link.Issuer,
			link.AccessTokenEnc, link.RefreshTokenEnc, link.AccessTokenExpiresAt,
		))
		if err != nil {
			if uniqueViolation(err) != "" {
				return model.ErrDuplicateOAuthLink
			}
			return fmt.Errorf("failed to insert link: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.OAuthLink{}, err
	}
	return saved, nil
}

// GetLiveByExternalID returns the non-revoked link holding the external
// identity, if any.
func (r *OAuthLinkRepository) GetLiveByExternalID(ctx context.Context, provider, externalID string) (model.OAuthLink, error) {
	const query = `
        SELECT ` + oauthLinkColumns + ` FROM app_user_oauth_link
        WHERE provider = $1 AND provider_user_id = $2 AND revoked_at IS NULL
    `

	l, err := scanOAuthLink(r.db.q(ctx).QueryRow(ctx, query, provider, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OAuthLink{}, model.ErrNotFound
		}
		return model.OAuthLink{}, fmt.Errorf("failed to get link by external id: %w", err)
	}
	return l, nil
}

// Revoke soft-deletes a link. Revoking an already-revoked or absent link is
// not an error.
func (r *OAuthLinkRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	const query = `
        UPDATE app_user_oauth_link SET revoked_at = NOW()
        WHERE id = $1 AND revoked_at IS NULL
    `

	if _, err := r.db.q(ctx).Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to revoke link: %w", err)
	}
	return nil
}

func (r *OAuthLinkRepository) RevokeByUserProvider(ctx context.Context, userID uuid.UUID, provider string) error {
	return r.revokeByUserProvider(ctx, userID, provider)
}

func (r *OAuthLinkRepository) revokeByUserProvider(ctx context.Context, userID uuid.UUID, provider string) error {
	const query = `
        UPDATE app_user_oauth_link SET revoked_at = NOW()
        WHERE user_id = $1 AND provider = $2 AND revoked_at IS NULL
    `

	if _, err := r.db.q(ctx).Exec(ctx, query, userID, provider); err != nil {
		return fmt.Errorf("failed to revoke link by user and provider: %w", err)
	}
	return nil
}

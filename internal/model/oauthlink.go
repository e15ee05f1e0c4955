package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OAuthLinkStore persists links between local users and external identities.
//
// Create revokes any live link for the same (user, provider) pair before
// inserting, and fails with ErrExternalIdentityAlreadyLinked when the
// (provider, external id) pair is live under a different user. Revoke is a
// soft delete and is idempotent.
type OAuthLinkStore interface {
	Create(ctx context.Context, link OAuthLink) (OAuthLink, error)
	GetLiveByExternalID(ctx context.Context, provider, externalID string) (OAuthLink, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeByUserProvider(ctx context.Context, userID uuid.UUID, provider string) error
}

// OAuthLink binds a local user to an identity at an external provider.
// Provider access and refresh tokens are stored encrypted. A set RevokedAt
// takes the row out of the live subset while preserving history.
type OAuthLink struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	Provider             string
	ExternalID           string
	Issuer               string
	AccessTokenEnc       []byte
	RefreshTokenEnc      []byte
	AccessTokenExpiresAt *time.Time
	RevokedAt            *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Revoked reports whether the link has been soft-deleted.
func (l OAuthLink) Revoked() bool {
	return l.RevokedAt != nil
}

// ProviderTokens carries the raw provider-issued tokens of an external
// identity assertion. The provider protocol flow itself happens upstream.
type ProviderTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// ExternalIdentity is an already-authenticated assertion from an identity
// provider, handed to the auth core by the web layer.
type ExternalIdentity struct {
	Provider      string
	ExternalID    string
	Issuer        string
	Email         string
	EmailVerified bool
	Tokens        ProviderTokens
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nrs-org/nrs-auth/internal/crypt"
	"github.com/nrs-org/nrs-auth/internal/logger"
	"github.com/nrs-org/nrs-auth/internal/model"
)

// OAuthLinks manages links between local users and external identities.
// Provider tokens are encrypted before they reach the store and are never
// logged.
type OAuthLinks struct {
	store  model.OAuthLinkStore
	users  model.UserStore
	cipher *crypt.Cipher
	logger *logger.Logger
}

func NewOAuthLinks(
	store model.OAuthLinkStore,
	users model.UserStore,
	cipher *crypt.Cipher,
	logger *logger.Logger,
) *OAuthLinks {
	return &OAuthLinks{
		store:  store,
		users:  users,
		cipher: cipher,
		logger: logger,
	}
}

// Link binds the external identity to the user, replacing the user's own
// previous link for the provider. Linking an identity that is live under a
// different user fails with ErrExternalIdentityAlreadyLinked.
func (s *OAuthLinks) Link(ctx context.Context, userID uuid.UUID, provider, externalID, issuer string, tokens model.ProviderTokens) (model.OAuthLink, error) {
	accessEnc, err := s.cipher.Encrypt([]byte(tokens.AccessToken))
	if err != nil {
		return model.OAuthLink{}, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	var refreshEnc []byte
	if tokens.RefreshToken != "" {
		refreshEnc, err = s.cipher.Encrypt([]byte(tokens.RefreshToken))
		if err != nil {
			return model.OAuthLink{}, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}

	link, err := s.store.Create(ctx, model.OAuthLink{
		UserID:               userID,
		Provider:             provider,
		ExternalID:           externalID,
		Issuer:               issuer,
		AccessTokenEnc:       accessEnc,
		RefreshTokenEnc:      refreshEnc,
		AccessTokenExpiresAt: tokens.ExpiresAt,
	})
	if err != nil {
		return model.OAuthLink{}, err
	}

	s.logger.Info("OAuth service: account linked",
		"link_id", link.ID,
		"user_id", userID,
		"provider", provider)

	return link, nil
}

// Unlink revokes a link. Unlinking an already-revoked link is not an error.
func (s *OAuthLinks) Unlink(ctx context.Context, linkID uuid.UUID) error {
	if err := s.store.Revoke(ctx, linkID); err != nil {
		return fmt.Errorf("failed to unlink account: %w", err)
	}

	s.logger.Info("OAuth service: account unlinked", "link_id", linkID)
	return nil
}

// FindUserByExternalID resolves an external identity to the local user
// holding its live link. This is the login-via-OAuth lookup path.
func (s *OAuthLinks) FindUserByExternalID(ctx context.Context, provider, externalID string) (model.User, error) {
	link, err := s.store.GetLiveByExternalID(ctx, provider, externalID)
	if err != nil {
		return model.User{}, err
	}

	user, err := s.users.GetByID(ctx, link.UserID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to load linked user: %w", err)
	}

	return user, nil
}

// AccessToken decrypts the stored provider access token of a link.
func (s *OAuthLinks) AccessToken(link model.OAuthLink) (string, error) {
	raw, err := s.cipher.Decrypt(link.AccessTokenEnc)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return string(raw), nil
}

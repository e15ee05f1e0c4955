package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nrs-org/nrs-auth/internal/crypt"
	"github.com/nrs-org/nrs-auth/internal/logger"
	"github.com/nrs-org/nrs-auth/internal/model"
)

// OneTimeTokens issues and redeems single-use, purpose-scoped tokens.
type OneTimeTokens struct {
	store  model.OneTimeTokenStore
	hasher *crypt.TokenHasher
	clock  model.Clock
	logger *logger.Logger
}

func NewOneTimeTokens(
	store model.OneTimeTokenStore,
	hasher *crypt.TokenHasher,
	clock model.Clock,
	logger *logger.Logger,
) *OneTimeTokens {
	return &OneTimeTokens{
		store:  store,
		hasher: hasher,
		clock:  clock,
		logger: logger,
	}
}

// Issue creates a fresh token for (user, purpose), superseding any live one:
// the previous token stops being redeemable without the caller learning
// whether one existed. The raw token is returned once and never persisted.
// Callers losing an issuance race get ErrTokenIssuanceConflict and may retry;
// a retry must generate a new raw token, which Issue does on every call.
func (s *OneTimeTokens) Issue(ctx context.Context, userID uuid.UUID, purpose model.TokenPurpose, ttl time.Duration, requestIP, userAgent string) (crypt.Token, error) {
	if !purpose.Valid() {
		return crypt.Token{}, model.ErrUnknownTokenPurpose
	}

	token, err := crypt.GenerateToken()
	if err != nil {
		return crypt.Token{}, fmt.Errorf("failed to generate token: %w", err)
	}

	err = s.store.Create(ctx, model.OneTimeToken{
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: s.hasher.Digest(token),
		ExpiresAt: s.clock.Now().Add(ttl),
		RequestIP: requestIP,
		UserAgent: userAgent,
	})
	if err != nil {
		return crypt.Token{}, err
	}

	s.logger.Info("Token service: one-time token issued",
		"user_id", userID,
		"purpose", purpose)

	return token, nil
}

// Redeem consumes a presented token. Exactly one of N concurrent redemptions
// of the same token succeeds; the rest get ErrTokenAlreadyUsed. Purpose
// mismatches are indistinguishable from absence.
func (s *OneTimeTokens) Redeem(ctx context.Context, rawToken string, purpose model.TokenPurpose) (uuid.UUID, error) {
	if !purpose.Valid() {
		return uuid.Nil, model.ErrUnknownTokenPurpose
	}

	token, err := crypt.ParseToken(rawToken)
	if err != nil {
		return uuid.Nil, err
	}

	userID, err := s.store.Consume(ctx, s.hasher.Digest(token), purpose, s.clock.Now())
	if err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("Token service: one-time token redeemed",
		"user_id", userID,
		"purpose", purpose)

	return userID, nil
}

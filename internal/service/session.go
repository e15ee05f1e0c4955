// Package service implements the credential-lifecycle managers and the verbs
// exposed to the web layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nrs-org/nrs-auth/internal/crypt"
	"github.com/nrs-org/nrs-auth/internal/logger"
	"github.com/nrs-org/nrs-auth/internal/model"
)

// Sessions issues, validates and revokes login sessions. Only the keyed
// digest of a session token is persisted; the raw token exists once, in the
// return value of Create.
type Sessions struct {
	store   model.SessionStore
	users   model.UserStore
	hasher  *crypt.TokenHasher
	clock   model.Clock
	logger  *logger.Logger
	ttl     time.Duration
	sliding bool
}

func NewSessions(
	store model.SessionStore,
	users model.UserStore,
	hasher *crypt.TokenHasher,
	clock model.Clock,
	logger *logger.Logger,
	ttl time.Duration,
	sliding bool,
) *Sessions {
	return &Sessions{
		store:   store,
		users:   users,
		hasher:  hasher,
		clock:   clock,
		logger:  logger,
		ttl:     ttl,
		sliding: sliding,
	}
}

// Create opens a session for the user and returns the raw bearer token to
// hand to the caller. The token is never persisted or logged.
func (s *Sessions) Create(ctx context.Context, userID uuid.UUID, userAgent, ip string) (model.Session, crypt.Token, error) {
	token, err := crypt.GenerateToken()
	if err != nil {
		return model.Session{}, crypt.Token{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	session, err := s.store.Create(ctx, model.Session{
		UserID:    userID,
		TokenHash: s.hasher.Digest(token),
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	})
	if err != nil {
		return model.Session{}, crypt.Token{}, fmt.Errorf("failed to persist session: %w", err)
	}

	s.logger.Info("Session service: session created",
		"session_id", session.ID,
		"user_id", userID)

	return session, token, nil
}

// Validate resolves a presented raw token to its owning user. Expired
// sessions are opportunistically deleted and reported as ErrSessionExpired;
// with sliding policy enabled a successful validation pushes the expiry
// forward by the configured TTL.
func (s *Sessions) Validate(ctx context.Context, rawToken string) (model.User, error) {
	token, err := crypt.ParseToken(rawToken)
	if err != nil {
		return model.User{}, err
	}

	session, err := s.store.GetByTokenHash(ctx, s.hasher.Digest(token))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, model.ErrSessionNotFound
		}
		return model.User{}, fmt.Errorf("failed to look up session: %w", err)
	}

	now := s.clock.Now()
	if !session.ExpiresAt.After(now) {
		if err := s.store.Delete(ctx, session.ID); err != nil {
			s.logger.Error("Session service: failed to delete expired session",
				"session_id", session.ID,
				"error", err.Error())
		}
		return model.User{}, model.ErrSessionExpired
	}

	if s.sliding {
		if err := s.store.ExtendExpiry(ctx, session.ID, now.Add(s.ttl)); err != nil {
			// validation stands; the session just keeps its old expiry
			s.logger.Error("Session service: failed to extend session",
				"session_id", session.ID,
				"error", err.Error())
		}
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to load session user: %w", err)
	}

	return user, nil
}

// Revoke deletes a session. Revoking an already-absent session is not an
// error.
func (s *Sessions) Revoke(ctx context.Context, sessionID int64) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.logger.Info("Session service: session revoked", "session_id", sessionID)
	return nil
}

// RevokeAll deletes every session of the user.
func (s *Sessions) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.DeleteAllByUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	s.logger.Info("Session service: all sessions revoked", "user_id", userID)
	return nil
}

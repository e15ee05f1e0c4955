package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nrs-org/nrs-auth/internal/crypt"
	"github.com/nrs-org/nrs-auth/internal/logger"
	"github.com/nrs-org/nrs-auth/internal/mail"
	"github.com/nrs-org/nrs-auth/internal/model"
)

// mailQuota bounds verification/reset mail requests per address.
const (
	mailQuota      = rate.Limit(5.0 / 60.0) // 5 per minute
	mailQuotaBurst = 5
)

// RequestMeta carries the client attribution of a request. It is recorded
// for audit, not enforced as a security boundary.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuthConfig holds the one-time token lifetimes, configured per deployment.
type AuthConfig struct {
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
}

// Auth exposes the verbs the web layer calls: registration, both login
// variants, logout and revocation, the email verification and password reset
// flows, and OAuth account linking.
type Auth struct {
	users    model.UserStore
	tx       model.TxManager
	sessions *Sessions
	tokens   *OneTimeTokens
	links    *OAuthLinks
	hasher   *crypt.PasswordHasher
	mailer   mail.Mailer
	limiter  *keyedLimiter
	logger   *logger.Logger
	cfg      AuthConfig
}

func NewAuth(
	users model.UserStore,
	tx model.TxManager,
	sessions *Sessions,
	tokens *OneTimeTokens,
	links *OAuthLinks,
	hasher *crypt.PasswordHasher,
	mailer mail.Mailer,
	logger *logger.Logger,
	cfg AuthConfig,
) *Auth {
	return &Auth{
		users:    users,
		tx:       tx,
		sessions: sessions,
		tokens:   tokens,
		links:    links,
		hasher:   hasher,
		mailer:   mailer,
		limiter:  newKeyedLimiter(mailQuota, mailQuotaBurst),
		logger:   logger,
		cfg:      cfg,
	}
}

// Register creates a user and requests a verification mail for the new
// address. A username or email collision fails with ErrEmailOrUsernameTaken.
func (a *Auth) Register(ctx context.Context, username, email, password string, meta RequestMeta) (model.User, error) {
	a.logger.Debug("Auth service: registering user",
		"username", username,
		"email", mail.MaskEmail(email))

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := a.users.Create(ctx, model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return model.User{}, err
	}

	// registration stands even when the mail request fails; the user can
	// ask for another verification mail
	if err := a.requestVerificationMail(ctx, user, meta); err != nil {
		a.logger.Error("Auth service: failed to request verification mail",
			"user_id", user.ID,
			"error", err.Error())
	}

	a.logger.Info("Auth service: user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies password credentials and opens a session. Unknown usernames
// and wrong passwords are indistinguishable to the caller, and a hash
// comparison runs either way so the two cost the same. Users with an
// unverified email get ErrEmailNotVerified and no session.
func (a *Auth) Login(ctx context.Context, username, password string, meta RequestMeta) (model.Session, crypt.Token, error) {
	a.logger.Debug("Auth service: login attempt", "username", username)

	user, err := a.users.GetByUsername(ctx, username)
	stored := user.PasswordHash
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return model.Session{}, crypt.Token{}, fmt.Errorf("failed to get user by username: %w", err)
		}
		stored = a.hasher.DummyHash()
	}

	if !a.hasher.Verify(password, stored) || err != nil {
		a.logger.Info("Auth service: login rejected", "username", username)
		return model.Session{}, crypt.Token{}, model.ErrInvalidCredentials
	}

	if !user.EmailVerified() {
		return model.Session{}, crypt.Token{}, model.ErrEmailNotVerified
	}

	session, token, err := a.sessions.Create(ctx, user.ID, meta.UserAgent, meta.IP)
	if err != nil {
		return model.Session{}, crypt.Token{}, err
	}

	a.logger.Info("Auth service: login succeeded", "user_id", user.ID)
	return session, token, nil
}

// LoginOAuth opens a session for the user holding a live link to the
// asserted external identity. An unlinked identity fails with ErrNotFound so
// the web layer can offer registration instead.
func (a *Auth) LoginOAuth(ctx context.Context, provider, externalID string, meta RequestMeta) (model.Session, crypt.Token, error) {
	a.logger.Debug("Auth service: oauth login attempt", "provider", provider)

	user, err := a.links.FindUserByExternalID(ctx, provider, externalID)
	if err != nil {
		return model.Session{}, crypt.Token{}, err
	}

	session, token, err := a.sessions.Create(ctx, user.ID, meta.UserAgent, meta.IP)
	if err != nil {
		return model.Session{}, crypt.Token{}, err
	}

	a.logger.Info("Auth service: oauth login succeeded",
		"user_id", user.ID,
		"provider", provider)
	return session, token, nil
}

// Logout revokes the session; revoking an absent session is not an error.
func (a *Auth) Logout(ctx context.Context, sessionID int64) error {
	return a.sessions.Revoke(ctx, sessionID)
}

// RevokeAllSessions signs the user out everywhere.
func (a *Auth) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	return a.sessions.RevokeAll(ctx, userID)
}

// RequestEmailVerification issues a fresh verification token for the address
// and requests the mail. It never discloses whether the address exists:
// unknown or already-verified addresses are a silent no-op.
func (a *Auth) RequestEmailVerification(ctx context.Context, email string, meta RequestMeta) error {
	if !a.limiter.Allow("verify:" + strings.ToLower(email)) {
		return model.ErrRateLimited
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			a.logger.Debug("Auth service: verification requested for unknown email",
				"email", mail.MaskEmail(email))
			return nil
		}
		return fmt.Errorf("failed to get user by email: %w", err)
	}
	if user.EmailVerified() {
		return nil
	}

	return a.requestVerificationMail(ctx, user, meta)
}

func (a *Auth) requestVerificationMail(ctx context.Context, user model.User, meta RequestMeta) error {
	token, err := a.tokens.Issue(ctx, user.ID, model.TokenPurposeEmailVerification,
		a.cfg.EmailVerificationTTL, meta.IP, meta.UserAgent)
	if err != nil {
		return err
	}

	if err := a.mailer.SendEmailVerification(ctx, user.Email, user.Username, token.String()); err != nil {
		return fmt.Errorf("failed to request verification mail: %w", err)
	}
	return nil
}

// VerifyEmail redeems a verification token and marks the owning user's email
// verified, atomically.
func (a *Auth) VerifyEmail(ctx context.Context, rawToken string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := a.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		userID, err = a.tokens.Redeem(ctx, rawToken, model.TokenPurposeEmailVerification)
		if err != nil {
			return err
		}
		return a.users.MarkEmailVerified(ctx, userID)
	})
	if err != nil {
		return uuid.Nil, err
	}

	a.logger.Info("Auth service: email verified", "user_id", userID)
	return userID, nil
}

// RequestPasswordReset issues a reset token and requests the mail. Only
// verified accounts get one, and the caller cannot tell whether anything was
// sent.
func (a *Auth) RequestPasswordReset(ctx context.Context, email string, meta RequestMeta) error {
	if !a.limiter.Allow("reset:" + strings.ToLower(email)) {
		return model.ErrRateLimited
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			a.logger.Debug("Auth service: password reset requested for unknown email",
				"email", mail.MaskEmail(email))
			return nil
		}
		return fmt.Errorf("failed to get user by email: %w", err)
	}
	if !user.EmailVerified() {
		a.logger.Debug("Auth service: password reset requested for unverified email",
			"user_id", user.ID)
		return nil
	}

	token, err := a.tokens.Issue(ctx, user.ID, model.TokenPurposePasswordReset,
		a.cfg.PasswordResetTTL, meta.IP, meta.UserAgent)
	if err != nil {
		return err
	}

	if err := a.mailer.SendPasswordReset(ctx, user.Email, user.Username, token.String()); err != nil {
		return fmt.Errorf("failed to request reset mail: %w", err)
	}
	return nil
}

// ResetPassword redeems a reset token, replaces the password hash and signs
// the user out of every session, atomically.
func (a *Auth) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	hash, err := a.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	var userID uuid.UUID
	err = a.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		userID, err = a.tokens.Redeem(ctx, rawToken, model.TokenPurposePasswordReset)
		if err != nil {
			return err
		}
		if err := a.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		return a.sessions.RevokeAll(ctx, userID)
	})
	if err != nil {
		return err
	}

	a.logger.Info("Auth service: password reset", "user_id", userID)
	return nil
}

// LinkOAuthAccount attaches an external identity to the user.
func (a *Auth) LinkOAuthAccount(ctx context.Context, userID uuid.UUID, identity model.ExternalIdentity) (model.OAuthLink, error) {
	return a.links.Link(ctx, userID, identity.Provider, identity.ExternalID, identity.Issuer, identity.Tokens)
}

// UnlinkOAuthAccount revokes a link; unlinking twice is not an error.
func (a *Auth) UnlinkOAuthAccount(ctx context.Context, linkID uuid.UUID) error {
	return a.links.Unlink(ctx, linkID)
}

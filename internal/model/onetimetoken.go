package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenPurpose scopes a one-time token to the flow it may redeem.
type TokenPurpose string

const (
	TokenPurposeEmailVerification TokenPurpose = "EMAIL_VERIFICATION"
	TokenPurposePasswordReset     TokenPurpose = "PASSWORD_RESET"
)

// Valid reports whether the purpose is one of the known enum values.
func (p TokenPurpose) Valid() bool {
	switch p {
	case TokenPurposeEmailVerification, TokenPurposePasswordReset:
		return true
	}
	return false
}

// OneTimeTokenStore persists single-use tokens.
//
// Create supersedes any live token for the same (user, purpose) pair and
// inserts the new row in one transaction; a race lost against a concurrent
// insert surfaces as ErrTokenIssuanceConflict. Consume atomically marks the
// matching live, unexpired row as used and returns its owner, or reports why
// it could not: ErrTokenNotFound, ErrTokenExpired or ErrTokenAlreadyUsed.
type OneTimeTokenStore interface {
	Create(ctx context.Context, token OneTimeToken) error
	Consume(ctx context.Context, tokenHash string, purpose TokenPurpose, now time.Time) (uuid.UUID, error)
}

// OneTimeToken is a single-use credential for email verification or password
// reset. Rows are never deleted; redemption sets LastUsedAt so history is kept
// for audit.
type OneTimeToken struct {
	UserID     uuid.UUID
	Purpose    TokenPurpose
	TokenHash  string
	ExpiresAt  time.Time
	LastUsedAt *time.Time
	RequestIP  string
	UserAgent  string
	CreatedAt  time.Time
}

package model

import "errors"

// ErrNotFound is returned by stores when no row matches the query.
var ErrNotFound = errors.New("not found")

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailNotVerified     = errors.New("email not verified")
	ErrEmailOrUsernameTaken = errors.New("email or username already taken")
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

var (
	ErrTokenNotFound         = errors.New("one-time token not found")
	ErrTokenExpired          = errors.New("one-time token expired")
	ErrTokenAlreadyUsed      = errors.New("one-time token already used")
	ErrTokenIssuanceConflict = errors.New("concurrent one-time token issuance")
	ErrUnknownTokenPurpose   = errors.New("unknown one-time token purpose")
)

var (
	ErrExternalIdentityAlreadyLinked = errors.New("external identity linked to another user")
	ErrDuplicateOAuthLink            = errors.New("concurrent oauth link creation")
)

// ErrRateLimited is returned when a caller exceeds the per-key quota for
// mail-sending operations.
var ErrRateLimited = errors.New("rate limit exceeded")

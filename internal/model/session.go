package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionStore persists login sessions. Only the keyed digest of the bearer
// token is ever stored; raw tokens live client-side.
type SessionStore interface {
	Create(ctx context.Context, session Session) (Session, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (Session, error)
	ExtendExpiry(ctx context.Context, id int64, expiresAt time.Time) error
	Delete(ctx context.Context, id int64) error
	DeleteAllByUser(ctx context.Context, userID uuid.UUID) error
}

// Session represents one authenticated browser or device. Sessions are
// cascade-deleted with their user.
type Session struct {
	ID        int64
	UserID    uuid.UUID
	TokenHash string
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

package crypt

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// TokenLength is the size of a raw bearer token in bytes (256 bits).
const TokenLength = 32

var (
	ErrInvalidTokenFormat = errors.New("invalid token format")
	ErrInvalidTokenLength = errors.New("invalid token length")
)

// Token is an unguessable bearer credential. Its wire form is URL-safe
// base64 without padding.
type Token [TokenLength]byte

// GenerateToken returns a new token drawn from the OS random source.
func GenerateToken() (Token, error) {
	var t Token
	if _, err := rand.Read(t[:]); err != nil {
		return Token{}, err
	}
	return t, nil
}

// ParseToken is the exact inverse of String. It rejects any input outside the
// URL-safe base64 alphabet with ErrInvalidTokenFormat and any decoded length
// other than TokenLength with ErrInvalidTokenLength.
func ParseToken(s string) (Token, error) {
	raw, err := base64.RawURLEncoding.Strict().DecodeString(s)
	if err != nil {
		return Token{}, ErrInvalidTokenFormat
	}
	if len(raw) != TokenLength {
		return Token{}, ErrInvalidTokenLength
	}
	var t Token
	copy(t[:], raw)
	return t, nil
}

func (t Token) String() string {
	return base64.RawURLEncoding.EncodeToString(t[:])
}

// TokenHasher computes keyed digests of tokens for storage. The digest is
// deterministic for a given key but cannot be recomputed or brute-forced
// without it, so leaked digests are not redeemable.
type TokenHasher struct {
	key []byte
}

// NewTokenHasher creates a TokenHasher using key as the HMAC-SHA256 secret.
func NewTokenHasher(key []byte) *TokenHasher {
	return &TokenHasher{key: key}
}

// Digest returns the HMAC-SHA256 of the token as standard base64.
func (h *TokenHasher) Digest(t Token) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write(t[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Package crypt implements the cryptographic primitives of the auth core:
// peppered argon2id password hashing, random bearer tokens with a URL-safe
// wire format and keyed digests, and AES-GCM encryption for provider tokens
// at rest.
package crypt

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2idParams are the cost parameters baked into every produced hash.
// Stored hashes carry their own parameters, so these can change without
// invalidating existing records.
type Argon2idParams struct {
	Time    uint32
	MemKiB  uint32
	Par     uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultArgon2idParams returns the production cost parameters.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:    1,
		MemKiB:  64 * 1024,
		Par:     4,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// PasswordHasher hashes and verifies passwords. Every password is first keyed
// with the process-wide pepper through HMAC-SHA256 and then stretched with
// argon2id over a per-call random salt, so a leaked database alone does not
// disclose passwords.
type PasswordHasher struct {
	pepper []byte
	params Argon2idParams

	dummyOnce sync.Once
	dummy     string
}

// NewPasswordHasher creates a PasswordHasher with the given pepper and cost
// parameters.
func NewPasswordHasher(pepper []byte, params Argon2idParams) *PasswordHasher {
	return &PasswordHasher{pepper: pepper, params: params}
}

// Hash returns the PHC-encoded argon2id hash of password under a fresh random
// salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := h.derive(password, salt, h.params)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemKiB, h.params.Time, h.params.Par,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the stored PHC-encoded hash.
// It recomputes with the parameters carried by the stored hash and compares
// in constant time. Malformed stored hashes fail closed: the result is false,
// never an error.
func (h *PasswordHasher) Verify(password, stored string) bool {
	params, salt, key, err := parsePHC(stored)
	if err != nil {
		return false
	}

	params.KeyLen = uint32(len(key))
	candidate := h.derive(password, salt, params)

	return subtle.ConstantTimeCompare(candidate, key) == 1
}

// DummyHash returns a process-lifetime hash of a throwaway password. Login
// verifies against it when the user is unknown, so unknown usernames cost the
// same as wrong passwords.
func (h *PasswordHasher) DummyHash() string {
	h.dummyOnce.Do(func() {
		hash, err := h.Hash("tententengokujigokugoku")
		if err != nil {
			// rand.Read failing means the process has no usable
			// entropy source; nothing sensible can continue.
			panic(fmt.Sprintf("crypt: failed to compute dummy hash: %v", err))
		}
		h.dummy = hash
	})
	return h.dummy
}

func (h *PasswordHasher) derive(password string, salt []byte, params Argon2idParams) []byte {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(password))
	peppered := mac.Sum(nil)

	return argon2.IDKey(peppered, salt, params.Time, params.MemKiB, params.Par, params.KeyLen)
}

// parsePHC decodes a "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
func parsePHC(stored string) (Argon2idParams, []byte, []byte, error) {
	var params Argon2idParams

	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, fmt.Errorf("malformed password hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, fmt.Errorf("malformed password hash version: %w", err)
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.MemKiB, &params.Time, &params.Par); err != nil {
		return params, nil, nil, fmt.Errorf("malformed password hash params: %w", err)
	}
	if params.MemKiB == 0 || params.Time == 0 || params.Par == 0 {
		return params, nil, nil, fmt.Errorf("invalid password hash params")
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("malformed password hash salt: %w", err)
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, fmt.Errorf("malformed password hash key: %w", err)
	}
	if len(key) == 0 {
		return params, nil, nil, fmt.Errorf("empty password hash key")
	}

	return params, salt, key, nil
}

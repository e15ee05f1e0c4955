package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrs-org/nrs-auth/internal/crypt"
	"github.com/nrs-org/nrs-auth/internal/model"
	"github.com/nrs-org/nrs-auth/internal/testutil"
)

// The Auth tests run the whole credential flow against in-memory stores that
// keep the real stores' contracts: conflict errors, compare-and-set
// redemption, live-link uniqueness.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[uuid.UUID]model.User{}}
}

func (s *fakeUserStore) Create(_ context.Context, user model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return model.User{}, model.ErrEmailOrUsernameTaken
		}
	}
	user.ID = uuid.New()
	s.users[user.ID] = user
	return user, nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return user, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, model.ErrNotFound
}

func (s *fakeUserStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, model.ErrNotFound
}

func (s *fakeUserStore) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return model.ErrNotFound
	}
	if user.EmailVerifiedAt == nil {
		now := time.Now()
		user.EmailVerifiedAt = &now
		s.users[id] = user
	}
	return nil
}

func (s *fakeUserStore) UpdatePasswordHash(_ context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return model.ErrNotFound
	}
	user.PasswordHash = passwordHash
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]model.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[int64]model.Session{}}
}

func (s *fakeSessionStore) Create(_ context.Context, session model.Session) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	session.ID = s.nextID
	s.sessions[session.ID] = session
	return session, nil
}

func (s *fakeSessionStore) GetByTokenHash(_ context.Context, tokenHash string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.TokenHash == tokenHash {
			return sess, nil
		}
	}
	return model.Session{}, model.ErrNotFound
}

func (s *fakeSessionStore) ExtendExpiry(_ context.Context, id int64, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.ErrNotFound
	}
	sess.ExpiresAt = expiresAt
	s.sessions[id] = sess
	return nil
}

func (s *fakeSessionStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *fakeSessionStore) DeleteAllByUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *fakeSessionStore) countByUser(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			n++
		}
	}
	return n
}

type fakeOAuthLinkStore struct {
	mu    sync.Mutex
	links map[uuid.UUID]model.OAuthLink
}

func newFakeOAuthLinkStore() *fakeOAuthLinkStore {
	return &fakeOAuthLinkStore{links: map[uuid.UUID]model.OAuthLink{}}
}

func (s *fakeOAuthLinkStore) Create(_ context.Context, link model.OAuthLink) (model.OAuthLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, l := range s.links {
		if l.Revoked() {
			continue
		}
		if l.Provider == link.Provider && l.ExternalID == link.ExternalID && l.UserID != link.UserID {
			return model.OAuthLink{}, model.ErrExternalIdentityAlreadyLinked
		}
		if l.UserID == link.UserID && l.Provider == link.Provider {
			l.RevokedAt = &now
			s.links[id] = l
		}
	}
	link.ID = uuid.New()
	s.links[link.ID] = link
	return link, nil
}

func (s *fakeOAuthLinkStore) GetLiveByExternalID(_ context.Context, provider, externalID string) (model.OAuthLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if !l.Revoked() && l.Provider == provider && l.ExternalID == externalID {
			return l, nil
		}
	}
	return model.OAuthLink{}, model.ErrNotFound
}

func (s *fakeOAuthLinkStore) Revoke(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[id]
	if ok && !l.Revoked() {
		now := time.Now()
		l.RevokedAt = &now
		s.links[id] = l
	}
	return nil
}

func (s *fakeOAuthLinkStore) RevokeByUserProvider(_ context.Context, userID uuid.UUID, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, l := range s.links {
		if !l.Revoked() && l.UserID == userID && l.Provider == provider {
			l.RevokedAt = &now
			s.links[id] = l
		}
	}
	return nil
}

// passthroughTx runs the function on the bare context; the fakes are already
// consistent under their own locks.
type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// recordingMailer captures outgoing tokens so tests can redeem them.
type recordingMailer struct {
	mu           sync.Mutex
	verification []string
	reset        []string
}

func (m *recordingMailer) SendEmailVerification(_ context.Context, _, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verification = append(m.verification, token)
	return nil
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, _, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset = append(m.reset, token)
	return nil
}

func (m *recordingMailer) lastVerification(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.verification)
	return m.verification[len(m.verification)-1]
}

func (m *recordingMailer) lastReset(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.reset)
	return m.reset[len(m.reset)-1]
}

type authEnv struct {
	auth     *Auth
	users    *fakeUserStore
	sessions *fakeSessionStore
	links    *fakeOAuthLinkStore
	mailer   *recordingMailer
	clock    *testutil.FixedClock
	cipher   *crypt.Cipher
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()

	users := newFakeUserStore()
	sessionStore := newFakeSessionStore()
	tokenStore := newCASTokenStore()
	linkStore := newFakeOAuthLinkStore()
	mailer := &recordingMailer{}
	clock := testutil.NewFixedClock(testStart)
	log := testutil.MakeNoopLogger()

	tokenHasher := crypt.NewTokenHasher([]byte("token-hash-key"))
	passwordHasher := crypt.NewPasswordHasher([]byte("pepper"), crypt.Argon2idParams{
		Time: 1, MemKiB: 8 * 1024, Par: 1, SaltLen: 16, KeyLen: 32,
	})
	cipher, err := crypt.NewCipher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	sessions := NewSessions(sessionStore, users, tokenHasher, clock, log, 30*24*time.Hour, true)
	tokens := NewOneTimeTokens(tokenStore, tokenHasher, clock, log)
	links := NewOAuthLinks(linkStore, users, cipher, log)

	auth := NewAuth(users, passthroughTx{}, sessions, tokens, links, passwordHasher, mailer, log, AuthConfig{
		EmailVerificationTTL: 24 * time.Hour,
		PasswordResetTTL:     15 * time.Minute,
	})

	return &authEnv{
		auth:     auth,
		users:    users,
		sessions: sessionStore,
		links:    linkStore,
		mailer:   mailer,
		clock:    clock,
		cipher:   cipher,
	}
}

func (e *authEnv) registerVerified(t *testing.T, username, email, password string) model.User {
	t.Helper()
	ctx := context.Background()

	user, err := e.auth.Register(ctx, username, email, password, RequestMeta{})
	require.NoError(t, err)

	_, err = e.auth.VerifyEmail(ctx, e.mailer.lastVerification(t))
	require.NoError(t, err)

	return user
}

func TestAuth_RegisterLoginFlow(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)

	user, err := env.auth.Register(ctx, "alice", "alice@example.com", "correct horse", RequestMeta{
		IP: "203.0.113.9", UserAgent: "test-agent",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	// login before verification is refused
	_, _, err = env.auth.Login(ctx, "alice", "correct horse", RequestMeta{})
	assert.ErrorIs(t, err, model.ErrEmailNotVerified)

	userID, err := env.auth.VerifyEmail(ctx, env.mailer.lastVerification(t))
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	session, token, err := env.auth.Login(ctx, "alice", "correct horse", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
	assert.NotEmpty(t, token.String())
}

func TestAuth_Register_Conflict(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)

	_, err := env.auth.Register(ctx, "alice", "alice@example.com", "pw one", RequestMeta{})
	require.NoError(t, err)

	_, err = env.auth.Register(ctx, "alice", "other@example.com", "pw two", RequestMeta{})
	assert.ErrorIs(t, err, model.ErrEmailOrUsernameTaken)

	_, err = env.auth.Register(ctx, "bob", "alice@example.com", "pw three", RequestMeta{})
	assert.ErrorIs(t, err, model.ErrEmailOrUsernameTaken)
}

func TestAuth_Login_UnknownUser(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)

	_, _, err := env.auth.Login(ctx, "nobody", "whatever", RequestMeta{})
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuth_Login_WrongPassword(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)
	env.registerVerified(t, "alice", "alice@example.com", "correct horse")

	_, _, err := env.auth.Login(ctx, "alice", "battery staple", RequestMeta{})
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuth_VerifyEmail_TokenIsSingleUse(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)

	_, err := env.auth.Register(ctx, "alice", "alice@example.com", "correct horse", RequestMeta{})
	require.NoError(t, err)
	token := env.mailer.lastVerification(t)

	_, err = env.auth.VerifyEmail(ctx, token)
	require.NoError(t, err)

	_, err = env.auth.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, model.ErrTokenAlreadyUsed)
}

func TestAuth_RequestEmailVerification_SilentForUnknownAndVerified(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)
	env.registerVerified(t, "alice", "alice@example.com", "correct horse")
	sent := len(env.mailer.verification)

	require.NoError(t, env.auth.RequestEmailVerification(ctx, "nobody@example.com", RequestMeta{}))
	require.NoError(t, env.auth.RequestEmailVerification(ctx, "alice@example.com", RequestMeta{}))

	assert.Len(t, env.mailer.verification, sent)
}

func TestAuth_RequestEmailVerification_RateLimited(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)

	var err error
	for i := 0; i < mailQuotaBurst; i++ {
		err = env.auth.RequestEmailVerification(ctx, "alice@example.com", RequestMeta{})
		require.NoError(t, err)
	}
	err = env.auth.RequestEmailVerification(ctx, "alice@example.com", RequestMeta{})
	assert.ErrorIs(t, err, model.ErrRateLimited)

	// other addresses keep their own budget
	require.NoError(t, env.auth.RequestEmailVerification(ctx, "bob@example.com", RequestMeta{}))
}

func TestAuth_PasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)
	user := env.registerVerified(t, "alice", "alice@example.com", "old password")

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "alice@example.com", RequestMeta{}))
	first := env.mailer.lastReset(t)

	// a second request supersedes the first token
	require.NoError(t, env.auth.RequestPasswordReset(ctx, "alice@example.com", RequestMeta{}))
	second := env.mailer.lastReset(t)
	require.NotEqual(t, first, second)

	err := env.auth.ResetPassword(ctx, first, "new password")
	assert.ErrorIs(t, err, model.ErrTokenAlreadyUsed)

	// open a session to check it gets revoked by the reset
	_, _, err = env.auth.Login(ctx, "alice", "old password", RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, env.auth.ResetPassword(ctx, second, "new password"))

	assert.Equal(t, 0, env.sessions.countByUser(user.ID))

	_, _, err = env.auth.Login(ctx, "alice", "old password", RequestMeta{})
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	_, _, err = env.auth.Login(ctx, "alice", "new password", RequestMeta{})
	require.NoError(t, err)

	err = env.auth.ResetPassword(ctx, second, "another password")
	assert.ErrorIs(t, err, model.ErrTokenAlreadyUsed)
}

func TestAuth_RequestPasswordReset_SilentForUnknownAndUnverified(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)

	_, err := env.auth.Register(ctx, "bob", "bob@example.com", "pw", RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "nobody@example.com", RequestMeta{}))
	require.NoError(t, env.auth.RequestPasswordReset(ctx, "bob@example.com", RequestMeta{}))

	assert.Empty(t, env.mailer.reset)
}

func TestAuth_ResetPassword_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)
	env.registerVerified(t, "alice", "alice@example.com", "old password")

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "alice@example.com", RequestMeta{}))
	token := env.mailer.lastReset(t)

	env.clock.Advance(16 * time.Minute)

	err := env.auth.ResetPassword(ctx, token, "new password")
	assert.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestAuth_LogoutAndRevokeAll(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)
	user := env.registerVerified(t, "alice", "alice@example.com", "correct horse")

	session, _, err := env.auth.Login(ctx, "alice", "correct horse", RequestMeta{})
	require.NoError(t, err)
	_, _, err = env.auth.Login(ctx, "alice", "correct horse", RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, 2, env.sessions.countByUser(user.ID))

	require.NoError(t, env.auth.Logout(ctx, session.ID))
	assert.Equal(t, 1, env.sessions.countByUser(user.ID))

	// logging out twice is fine
	require.NoError(t, env.auth.Logout(ctx, session.ID))

	require.NoError(t, env.auth.RevokeAllSessions(ctx, user.ID))
	assert.Equal(t, 0, env.sessions.countByUser(user.ID))
}

func TestAuth_OAuthLinkAndLogin(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)
	alice := env.registerVerified(t, "alice", "alice@example.com", "pw alice")
	bob := env.registerVerified(t, "bob", "bob@example.com", "pw bob")

	identity := model.ExternalIdentity{
		Provider:   "google",
		ExternalID: "sub-123",
		Issuer:     "https://accounts.google.com",
		Tokens:     model.ProviderTokens{AccessToken: "ya29.secret"},
	}

	link, err := env.auth.LinkOAuthAccount(ctx, alice.ID, identity)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, link.UserID)

	session, _, err := env.auth.LoginOAuth(ctx, "google", "sub-123", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, session.UserID)

	// the identity is taken while alice's link is live
	_, err = env.auth.LinkOAuthAccount(ctx, bob.ID, identity)
	assert.ErrorIs(t, err, model.ErrExternalIdentityAlreadyLinked)

	// re-linking replaces alice's own link, never errors
	relink, err := env.auth.LinkOAuthAccount(ctx, alice.ID, identity)
	require.NoError(t, err)
	assert.NotEqual(t, link.ID, relink.ID)

	require.NoError(t, env.auth.UnlinkOAuthAccount(ctx, relink.ID))

	_, _, err = env.auth.LoginOAuth(ctx, "google", "sub-123", RequestMeta{})
	assert.ErrorIs(t, err, model.ErrNotFound)

	// revoked identity is free for bob now
	_, err = env.auth.LinkOAuthAccount(ctx, bob.ID, identity)
	require.NoError(t, err)
}

func TestAuth_ConcurrentRegistrations(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.auth.Register(ctx,
				fmt.Sprintf("user%d", i),
				fmt.Sprintf("user%d@example.com", i),
				"pw", RequestMeta{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// fakeProfileRepo is a minimal in-memory profile repository for auth tests.
type fakeProfileRepo struct {
	byEmail map[string]*profile.Profile
}

func (f *fakeProfileRepo) Create(ctx context.Context, p *profile.Profile) error { return nil }
func (f *fakeProfileRepo) GetByID(ctx context.Context, id shared.UserID) (*profile.Profile, error) {
	return nil, shared.ErrProfileNotFound
}
func (f *fakeProfileRepo) GetByIDForUpdate(ctx context.Context, id shared.UserID) (*profile.Profile, error) {
	return nil, shared.ErrProfileNotFound
}
func (f *fakeProfileRepo) GetByEmail(ctx context.Context, email shared.Email) (*profile.Profile, error) {
	if p, ok := f.byEmail[string(email)]; ok {
		return p, nil
	}
	return nil, shared.ErrProfileNotFound
}
func (f *fakeProfileRepo) Update(ctx context.Context, p *profile.Profile) error { return nil }
func (f *fakeProfileRepo) Delete(ctx context.Context, id shared.UserID) error   { return nil }
func (f *fakeProfileRepo) ListActive(ctx context.Context, threshold time.Duration, opts profile.ListOptions) ([]*profile.Profile, error) {
	return nil, nil
}
func (f *fakeProfileRepo) FindLapsed(ctx context.Context, threshold time.Duration) ([]*profile.Profile, error) {
	return nil, nil
}
func (f *fakeProfileRepo) Count(ctx context.Context) (int, error) { return len(f.byEmail), nil }
func (f *fakeProfileRepo) Exists(ctx context.Context, id shared.UserID) (bool, error) {
	return false, nil
}
func (f *fakeProfileRepo) ExistsByEmail(ctx context.Context, email shared.Email) (bool, error) {
	_, ok := f.byEmail[string(email)]
	return ok, nil
}

// fakeSessionStore keeps sessions in a map.
type fakeSessionStore struct {
	sessions map[string]shared.UserID
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]shared.UserID)}
}

func (f *fakeSessionStore) Create(ctx context.Context, token string, userID shared.UserID, ttl time.Duration) error {
	f.sessions[token] = userID
	return nil
}
func (f *fakeSessionStore) Resolve(ctx context.Context, token string) (shared.UserID, error) {
	if id, ok := f.sessions[token]; ok {
		return id, nil
	}
	return "", shared.ErrSessionExpired
}
func (f *fakeSessionStore) Revoke(ctx context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}
func (f *fakeSessionStore) Refresh(ctx context.Context, token string, ttl time.Duration) error {
	return nil
}

func newTestAuthService(t *testing.T, password string) (*AuthService, *fakeSessionStore) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	email, err := shared.NewEmail("aigerim@example.com")
	require.NoError(t, err)

	p, err := profile.NewProfile(profile.NewProfileParams{
		ID:               shared.UserID("user1"),
		Email:            email,
		PasswordHash:     string(hash),
		DisplayName:      "Aigerim",
		InjuryType:       "concussion",
		DailyGoalMinutes: 15,
	})
	require.NoError(t, err)

	repo := &fakeProfileRepo{byEmail: map[string]*profile.Profile{
		string(p.Email): p,
	}}
	sessions := newFakeSessionStore()

	return NewAuthService(repo, sessions, DefaultAuthConfig()), sessions
}

func TestAuthService_LoginSuccess(t *testing.T) {
	svc, sessions := newTestAuthService(t, "correct horse")

	p, token, err := svc.Login(context.Background(), "aigerim@example.com", "correct horse")
	require.NoError(t, err)

	assert.NotEmpty(t, token)
	assert.Equal(t, shared.UserID("user1"), p.ID)
	assert.Equal(t, shared.UserID("user1"), sessions.sessions[token])
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	svc, sessions := newTestAuthService(t, "correct horse")

	_, _, err := svc.Login(context.Background(), "aigerim@example.com", "battery staple")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.Empty(t, sessions.sessions)
}

func TestAuthService_LoginUnknownEmail(t *testing.T) {
	svc, _ := newTestAuthService(t, "correct horse")

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthService_LoginMalformedEmail(t *testing.T) {
	svc, _ := newTestAuthService(t, "correct horse")

	// A malformed email must look like bad credentials, not a validation error.
	_, _, err := svc.Login(context.Background(), "not-an-email", "whatever")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthService_LogoutRevokesSession(t *testing.T) {
	svc, sessions := newTestAuthService(t, "correct horse")

	_, token, err := svc.Login(context.Background(), "aigerim@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), token))
	assert.Empty(t, sessions.sessions)

	_, err = svc.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, shared.ErrSessionExpired)
}

func TestAuthService_ResolveReturnsUserID(t *testing.T) {
	svc, _ := newTestAuthService(t, "correct horse")

	_, token, err := svc.Login(context.Background(), "aigerim@example.com", "correct horse")
	require.NoError(t, err)

	userID, err := svc.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, shared.UserID("user1"), userID)
}

func TestAuthService_GenerateTokenIsOpaqueAndUnique(t *testing.T) {
	svc, _ := newTestAuthService(t, "x")

	t1, err := svc.GenerateToken()
	require.NoError(t, err)
	t2, err := svc.GenerateToken()
	require.NoError(t, err)

	assert.Len(t, t1, 64)
	assert.NotEqual(t, t1, t2)
}

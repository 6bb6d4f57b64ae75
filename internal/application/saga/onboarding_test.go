package saga

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/checkin"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeProfileRepo struct {
	profiles  map[shared.UserID]*profile.Profile
	createErr error
	deleted   []shared.UserID
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[shared.UserID]*profile.Profile)}
}

func (r *fakeProfileRepo) Create(_ context.Context, p *profile.Profile) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.profiles[p.ID] = p
	return nil
}

func (r *fakeProfileRepo) GetByID(_ context.Context, id shared.UserID) (*profile.Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return p, nil
}

func (r *fakeProfileRepo) GetByIDForUpdate(ctx context.Context, id shared.UserID) (*profile.Profile, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeProfileRepo) GetByEmail(_ context.Context, email shared.Email) (*profile.Profile, error) {
	for _, p := range r.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, shared.ErrProfileNotFound
}

func (r *fakeProfileRepo) Update(_ context.Context, p *profile.Profile) error {
	r.profiles[p.ID] = p
	return nil
}

func (r *fakeProfileRepo) Delete(_ context.Context, id shared.UserID) error {
	delete(r.profiles, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeProfileRepo) ListActive(context.Context, time.Duration, profile.ListOptions) ([]*profile.Profile, error) {
	return nil, nil
}

func (r *fakeProfileRepo) FindLapsed(context.Context, time.Duration) ([]*profile.Profile, error) {
	return nil, nil
}

func (r *fakeProfileRepo) Count(context.Context) (int, error) { return len(r.profiles), nil }

func (r *fakeProfileRepo) Exists(_ context.Context, id shared.UserID) (bool, error) {
	_, ok := r.profiles[id]
	return ok, nil
}

func (r *fakeProfileRepo) ExistsByEmail(_ context.Context, email shared.Email) (bool, error) {
	for _, p := range r.profiles {
		if p.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type fakeProgressRepo struct {
	aggregates map[shared.UserID]*profile.Progress
	seedErr    error
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{aggregates: make(map[shared.UserID]*profile.Progress)}
}

func (r *fakeProgressRepo) Get(_ context.Context, userID shared.UserID) (*profile.Progress, error) {
	pr, ok := r.aggregates[userID]
	if !ok {
		return profile.NewProgress(userID), nil
	}
	return pr, nil
}

func (r *fakeProgressRepo) AddXP(_ context.Context, userID shared.UserID, amount int) (*profile.Progress, error) {
	pr, ok := r.aggregates[userID]
	if !ok {
		pr = profile.NewProgress(userID)
		r.aggregates[userID] = pr
	}
	pr.AddXP(amount)
	return pr, nil
}

func (r *fakeProgressRepo) Seed(_ context.Context, userID shared.UserID) error {
	if r.seedErr != nil {
		return r.seedErr
	}
	if _, ok := r.aggregates[userID]; !ok {
		r.aggregates[userID] = profile.NewProgress(userID)
	}
	return nil
}

type fakeCheckInRepo struct {
	streaks map[shared.UserID]*checkin.Streak
}

func newFakeCheckInRepo() *fakeCheckInRepo {
	return &fakeCheckInRepo{streaks: make(map[shared.UserID]*checkin.Streak)}
}

func (r *fakeCheckInRepo) Upsert(context.Context, *checkin.CheckIn) error { return nil }

func (r *fakeCheckInRepo) Get(context.Context, shared.UserID, time.Time) (*checkin.CheckIn, error) {
	return nil, shared.ErrCheckInNotFound
}

func (r *fakeCheckInRepo) GetToday(context.Context, shared.UserID) (*checkin.CheckIn, error) {
	return nil, shared.ErrCheckInNotFound
}

func (r *fakeCheckInRepo) ListRange(context.Context, shared.UserID, time.Time, time.Time) ([]*checkin.CheckIn, error) {
	return nil, nil
}

func (r *fakeCheckInRepo) ListRecent(context.Context, shared.UserID, int) ([]*checkin.CheckIn, error) {
	return nil, nil
}

func (r *fakeCheckInRepo) GetStreak(_ context.Context, userID shared.UserID) (*checkin.Streak, error) {
	s, ok := r.streaks[userID]
	if !ok {
		return checkin.NewStreak(userID), nil
	}
	return s, nil
}

func (r *fakeCheckInRepo) SaveStreak(_ context.Context, s *checkin.Streak) error {
	r.streaks[s.UserID] = s
	return nil
}

type fakeSessionStore struct {
	sessions  map[string]shared.UserID
	createErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]shared.UserID)}
}

func (s *fakeSessionStore) Create(_ context.Context, token string, userID shared.UserID, _ time.Duration) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.sessions[token] = userID
	return nil
}

func (s *fakeSessionStore) Resolve(_ context.Context, token string) (shared.UserID, error) {
	id, ok := s.sessions[token]
	if !ok {
		return "", shared.ErrSessionExpired
	}
	return id, nil
}

func (s *fakeSessionStore) Revoke(_ context.Context, token string) error {
	delete(s.sessions, token)
	return nil
}

func (s *fakeSessionStore) Refresh(context.Context, string, time.Duration) error { return nil }

type fakeEventBus struct{ events []shared.Event }

func (b *fakeEventBus) Publish(e shared.Event) error {
	b.events = append(b.events, e)
	return nil
}

type seqIDGenerator struct{ n int }

func (g *seqIDGenerator) GenerateID() string {
	g.n++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", g.n)
}

type staticTokenGenerator struct{}

func (staticTokenGenerator) GenerateToken() (string, error) { return "tok-onboarding", nil }

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

type onboardingFixture struct {
	profiles *fakeProfileRepo
	progress *fakeProgressRepo
	checkins *fakeCheckInRepo
	sessions *fakeSessionStore
	bus      *fakeEventBus
	saga     *OnboardingSaga
}

func newOnboardingFixture() *onboardingFixture {
	f := &onboardingFixture{
		profiles: newFakeProfileRepo(),
		progress: newFakeProgressRepo(),
		checkins: newFakeCheckInRepo(),
		sessions: newFakeSessionStore(),
		bus:      &fakeEventBus{},
	}
	f.saga = NewOnboardingSaga(
		f.profiles,
		f.progress,
		f.checkins,
		f.sessions,
		recommendation.NewFallbackGenerator(),
		nil, // recRepo nil: welcome recommendation skipped
		f.bus,
		&seqIDGenerator{},
		staticTokenGenerator{},
		OnboardingSagaConfig{SessionTTL: time.Hour, BcryptCost: bcrypt.MinCost},
	)
	return f
}

func validInput() OnboardingInput {
	return OnboardingInput{
		Email:       "ash@example.com",
		Password:    "strong-password",
		DisplayName: "Ash",
		InjuryType:  "concussion",
	}
}

func TestOnboarding_HappyPath(t *testing.T) {
	f := newOnboardingFixture()

	res, err := f.saga.Execute(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, shared.Phase(1), res.Profile.PhoenixPhase)
	assert.Equal(t, shared.FlameStrength(0), res.Profile.FlameStrength)
	assert.Equal(t, "tok-onboarding", res.SessionToken)

	// Password is stored hashed, never in plaintext.
	assert.NotEqual(t, "strong-password", res.Profile.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(res.Profile.PasswordHash), []byte("strong-password")))

	// Session resolves to the new user.
	userID, err := f.sessions.Resolve(context.Background(), res.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, res.Profile.ID, userID)

	// Progress aggregate and streak seeded.
	_, ok := f.progress.aggregates[res.Profile.ID]
	assert.True(t, ok)
	_, ok = f.checkins.streaks[res.Profile.ID]
	assert.True(t, ok)

	require.Len(t, f.bus.events, 1)
	assert.Equal(t, shared.EventProfileRegistered, f.bus.events[0].EventType())
}

func TestOnboarding_DuplicateEmail(t *testing.T) {
	f := newOnboardingFixture()

	_, err := f.saga.Execute(context.Background(), validInput())
	require.NoError(t, err)

	_, err = f.saga.Execute(context.Background(), validInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrEmailTaken)

	var sagaErr *OnboardingError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, StepCheckExistence, sagaErr.Step)
	assert.False(t, sagaErr.IsRetryable())
}

func TestOnboarding_ShortPassword(t *testing.T) {
	f := newOnboardingFixture()

	input := validInput()
	input.Password = "short"

	_, err := f.saga.Execute(context.Background(), input)
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestOnboarding_CompensatesOnProgressFailure(t *testing.T) {
	f := newOnboardingFixture()
	f.progress.seedErr = errors.New("disk full")

	_, err := f.saga.Execute(context.Background(), validInput())
	require.Error(t, err)

	// The partially created profile is removed so the email can retry.
	assert.Empty(t, f.profiles.profiles)
	assert.Len(t, f.profiles.deleted, 1)

	_, err = f.saga.Execute(context.Background(), validInput())
	assert.Error(t, err, "still failing, but not with email taken")
	assert.NotErrorIs(t, err, shared.ErrEmailTaken)
}

func TestOnboarding_CompensatesOnSessionFailure(t *testing.T) {
	f := newOnboardingFixture()
	f.sessions.createErr = errors.New("redis down")

	_, err := f.saga.Execute(context.Background(), validInput())
	require.Error(t, err)
	assert.Empty(t, f.profiles.profiles)

	var sagaErr *OnboardingError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, StepOpenSession, sagaErr.Step)
	assert.True(t, sagaErr.IsRetryable())
}

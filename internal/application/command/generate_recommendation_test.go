package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// stubGenerator returns a canned recommendation or a canned error.
type stubGenerator struct {
	err   error
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, prompt recommendation.PromptContext, day time.Time) (*recommendation.Recommendation, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return recommendation.New(prompt.UserID, day, recommendation.Payload{
		Module:   recommendation.ModuleBreathing,
		Exercise: "Box breathing",
		Duration: 10,
		Reason:   "Steady week, keep the routine.",
		Message:  "One breath at a time.",
		Insight:  "Consistency beats intensity.",
	}, recommendation.SourceGemini, "gemini-2.0-flash")
}

type recommendationFixture struct {
	state     *memState
	publisher *memEventPublisher
	generator *stubGenerator
}

func newRecommendationFixture(t *testing.T) *recommendationFixture {
	t.Helper()

	state := newMemState()
	p, err := profile.NewProfile(profile.NewProfileParams{
		ID:           testUserID,
		Email:        "ash@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		DisplayName:  "Ash",
		InjuryType:   "concussion",
	})
	require.NoError(t, err)
	state.profiles[p.ID] = p

	return &recommendationFixture{
		state:     state,
		publisher: &memEventPublisher{},
		generator: &stubGenerator{},
	}
}

func (f *recommendationFixture) handler() *GenerateRecommendationHandler {
	return NewGenerateRecommendationHandler(
		&memProfileRepo{s: f.state},
		&memProgressRepo{s: f.state},
		&memCheckInRepo{s: f.state},
		&memRecommendationRepo{s: f.state},
		f.generator,
		f.publisher,
		DefaultGenerateRecommendationConfig(),
	)
}

func TestGenerateRecommendation_SuccessIsPersisted(t *testing.T) {
	f := newRecommendationFixture(t)
	day := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	res, err := f.handler().Handle(context.Background(), GenerateRecommendationCommand{
		UserID: testUserID,
		Day:    day,
	})
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.False(t, res.FromStore)
	assert.Equal(t, recommendation.SourceGemini, res.Recommendation.Source)

	stored, err := (&memRecommendationRepo{s: f.state}).Get(context.Background(), shared.UserID(testUserID), day)
	require.NoError(t, err)
	assert.Equal(t, res.Recommendation.Payload, stored.Payload)
}

func TestGenerateRecommendation_FallbackIsNotPersisted(t *testing.T) {
	f := newRecommendationFixture(t)
	f.generator.err = shared.ErrGeminiRateLimited
	day := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	res, err := f.handler().Handle(context.Background(), GenerateRecommendationCommand{
		UserID: testUserID,
		Day:    day,
	})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.ErrorIs(t, res.Cause, shared.ErrGeminiRateLimited)
	assert.Equal(t, recommendation.SourceFallback, res.Recommendation.Source)

	// Same shape as a real recommendation, but nothing stored: a retry
	// should still have a chance at a real one.
	assert.NoError(t, res.Recommendation.Payload.Validate())
	_, err = (&memRecommendationRepo{s: f.state}).Get(context.Background(), shared.UserID(testUserID), day)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.Contains(t, f.publisher.typesSeen(), string(shared.EventRecommendationFellBack))
}

func TestGenerateRecommendation_StoredWinsUnlessForced(t *testing.T) {
	f := newRecommendationFixture(t)
	day := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	h := f.handler()

	_, err := h.Handle(context.Background(), GenerateRecommendationCommand{UserID: testUserID, Day: day})
	require.NoError(t, err)
	require.Equal(t, 1, f.generator.calls)

	res, err := h.Handle(context.Background(), GenerateRecommendationCommand{UserID: testUserID, Day: day})
	require.NoError(t, err)
	assert.True(t, res.FromStore)
	assert.Equal(t, 1, f.generator.calls, "stored recommendation short-circuits the generator")

	_, err = h.Handle(context.Background(), GenerateRecommendationCommand{UserID: testUserID, Day: day, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, f.generator.calls)
}

func TestGenerateRecommendation_NilGeneratorServesFallback(t *testing.T) {
	f := newRecommendationFixture(t)

	h := NewGenerateRecommendationHandler(
		&memProfileRepo{s: f.state},
		&memProgressRepo{s: f.state},
		&memCheckInRepo{s: f.state},
		&memRecommendationRepo{s: f.state},
		nil,
		f.publisher,
		DefaultGenerateRecommendationConfig(),
	)

	res, err := h.Handle(context.Background(), GenerateRecommendationCommand{UserID: testUserID})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.True(t, res.Recommendation.IsFallback())
}

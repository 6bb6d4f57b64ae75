package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

const testUserID = shared.UserID("5f0c3a7e-4c1d-4b2a-9f6e-1a2b3c4d5e6f")

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type stubProfileRepo struct {
	profile *profile.Profile
}

func (r *stubProfileRepo) Create(context.Context, *profile.Profile) error { return nil }

func (r *stubProfileRepo) GetByID(_ context.Context, id shared.UserID) (*profile.Profile, error) {
	if r.profile == nil || r.profile.ID != id {
		return nil, shared.ErrProfileNotFound
	}
	return r.profile, nil
}

func (r *stubProfileRepo) GetByIDForUpdate(ctx context.Context, id shared.UserID) (*profile.Profile, error) {
	return r.GetByID(ctx, id)
}

func (r *stubProfileRepo) GetByEmail(context.Context, shared.Email) (*profile.Profile, error) {
	return nil, shared.ErrProfileNotFound
}

func (r *stubProfileRepo) Update(context.Context, *profile.Profile) error { return nil }
func (r *stubProfileRepo) Delete(context.Context, shared.UserID) error    { return nil }

func (r *stubProfileRepo) ListActive(context.Context, time.Duration, profile.ListOptions) ([]*profile.Profile, error) {
	return nil, nil
}

func (r *stubProfileRepo) FindLapsed(context.Context, time.Duration) ([]*profile.Profile, error) {
	return nil, nil
}

func (r *stubProfileRepo) Count(context.Context) (int, error) { return 0, nil }

func (r *stubProfileRepo) Exists(context.Context, shared.UserID) (bool, error) { return false, nil }

func (r *stubProfileRepo) ExistsByEmail(context.Context, shared.Email) (bool, error) {
	return false, nil
}

type stubQuestRepo struct {
	records   []*quest.Record
	listCalls int
}

func (r *stubQuestRepo) Upsert(context.Context, *quest.Record) error { return nil }

func (r *stubQuestRepo) Get(context.Context, shared.UserID, shared.QuestKey) (*quest.Record, error) {
	return nil, shared.ErrQuestRecordNotFound
}

func (r *stubQuestRepo) GetForUpdate(context.Context, shared.UserID, shared.QuestKey) (*quest.Record, error) {
	return nil, shared.ErrQuestRecordNotFound
}

func (r *stubQuestRepo) ListByUser(context.Context, shared.UserID) ([]*quest.Record, error) {
	r.listCalls++
	return r.records, nil
}

func (r *stubQuestRepo) CountCompletedInPhase(context.Context, shared.UserID, shared.Phase) (int, error) {
	return 0, nil
}

func (r *stubQuestRepo) CountCompleted(context.Context, shared.UserID) (int, error) { return 0, nil }

func (r *stubQuestRepo) ListCompletedSince(context.Context, shared.UserID, time.Time) ([]*quest.Record, error) {
	return nil, nil
}

type stubPathCache struct {
	statuses map[shared.UserID]quest.StatusMap
	sets     int
}

func newStubPathCache() *stubPathCache {
	return &stubPathCache{statuses: make(map[shared.UserID]quest.StatusMap)}
}

func (c *stubPathCache) GetStatuses(_ context.Context, userID shared.UserID) (quest.StatusMap, error) {
	m, ok := c.statuses[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return m, nil
}

func (c *stubPathCache) SetStatuses(_ context.Context, userID shared.UserID, m quest.StatusMap, _ time.Duration) error {
	c.statuses[userID] = m
	c.sets++
	return nil
}

func (c *stubPathCache) Invalidate(_ context.Context, userID shared.UserID) error {
	delete(c.statuses, userID)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func pathTestProfile(t *testing.T, phase shared.Phase) *profile.Profile {
	t.Helper()

	p, err := profile.NewProfile(profile.NewProfileParams{
		ID:           testUserID,
		Email:        "ash@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		DisplayName:  "Ash",
	})
	require.NoError(t, err)
	require.NoError(t, p.ApplyProgression(phase, 0))
	return p
}

func TestGetQuestPath_GuestSeesOnlyPhaseOne(t *testing.T) {
	h := NewGetQuestPathHandler(
		quest.NewEvaluator(quest.DefaultCatalog()),
		&stubQuestRepo{},
		&stubProfileRepo{},
		nil,
		0,
	)

	res, err := h.Handle(context.Background(), GetQuestPathQuery{})
	require.NoError(t, err)

	assert.True(t, res.Guest)
	assert.Equal(t, 1, res.UserPhase)
	assert.Equal(t, 0, res.FlameStrength)
	require.Len(t, res.Phases, 4)

	for _, phase := range res.Phases {
		for _, q := range phase.Quests {
			if phase.Phase == 1 {
				assert.Equal(t, string(quest.StatusAvailable), q.Status)
			} else {
				assert.Equal(t, string(quest.StatusLocked), q.Status)
			}
		}
	}
}

func TestGetQuestPath_AuthorizedStatusesAndCounters(t *testing.T) {
	catalog := quest.DefaultCatalog()
	evaluator := quest.NewEvaluator(catalog)
	prof := pathTestProfile(t, 2)

	// One completed phase-1 quest persisted.
	def, err := catalog.Get("first-breath")
	require.NoError(t, err)
	rec := quest.NewRecord(testUserID, def)
	rec.Complete(time.Now().UTC(), nil)

	repo := &stubQuestRepo{records: []*quest.Record{rec}}
	h := NewGetQuestPathHandler(evaluator, repo, &stubProfileRepo{profile: prof}, nil, 0)

	res, err := h.Handle(context.Background(), GetQuestPathQuery{UserID: string(testUserID)})
	require.NoError(t, err)

	assert.False(t, res.Guest)
	assert.Equal(t, 2, res.UserPhase)

	phase1 := res.Phases[0]
	assert.Equal(t, 1, phase1.CompletedCount)

	// Phase 2 quests are available at user phase 2, phase 3 locked.
	for _, q := range res.Phases[1].Quests {
		assert.Equal(t, string(quest.StatusAvailable), q.Status)
	}
	for _, q := range res.Phases[2].Quests {
		assert.Equal(t, string(quest.StatusLocked), q.Status)
	}
}

func TestGetQuestPath_UsesCache(t *testing.T) {
	evaluator := quest.NewEvaluator(quest.DefaultCatalog())
	prof := pathTestProfile(t, 1)
	repo := &stubQuestRepo{}
	cache := newStubPathCache()

	h := NewGetQuestPathHandler(evaluator, repo, &stubProfileRepo{profile: prof}, cache, time.Minute)

	// First call computes and stores.
	res, err := h.Handle(context.Background(), GetQuestPathQuery{UserID: string(testUserID)})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, 1, cache.sets)

	// Second call is served from cache.
	res, err = h.Handle(context.Background(), GetQuestPathQuery{UserID: string(testUserID)})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, 1, repo.listCalls)

	// SkipCache forces a recompute.
	res, err = h.Handle(context.Background(), GetQuestPathQuery{UserID: string(testUserID), SkipCache: true})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 2, repo.listCalls)
}

func TestGetQuestPath_UnknownUser(t *testing.T) {
	h := NewGetQuestPathHandler(
		quest.NewEvaluator(quest.DefaultCatalog()),
		&stubQuestRepo{},
		&stubProfileRepo{},
		nil,
		0,
	)

	_, err := h.Handle(context.Background(), GetQuestPathQuery{UserID: string(testUserID)})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

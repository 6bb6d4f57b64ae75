package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

const testUserID = "5f0c3a7e-4c1d-4b2a-9f6e-1a2b3c4d5e6f"

// commandCatalog builds a small 4-phase catalog: five 20-XP quests in
// phase 1 (advance threshold 3), one quest in each later phase.
func commandCatalog(t *testing.T) *quest.Catalog {
	t.Helper()

	defs := []quest.Definition{
		{Key: "p1-alpha", Phase: 1, Type: quest.TypeBreathing, Title: "Alpha", XPReward: 20},
		{Key: "p1-bravo", Phase: 1, Type: quest.TypeCognitive, Title: "Bravo", XPReward: 20},
		{Key: "p1-charlie", Phase: 1, Type: quest.TypeReflection, Title: "Charlie", XPReward: 20},
		{Key: "p1-delta", Phase: 1, Type: quest.TypePhysical, Title: "Delta", XPReward: 20},
		{Key: "p1-echo", Phase: 1, Type: quest.TypeGratitude, Title: "Echo", XPReward: 20},
		{Key: "p2-foxtrot", Phase: 2, Type: quest.TypeBreathing, Title: "Foxtrot", XPReward: 30},
		{Key: "p3-golf", Phase: 3, Type: quest.TypeCognitive, Title: "Golf", XPReward: 40},
		{Key: "p4-hotel", Phase: 4, Type: quest.TypeReflection, Title: "Hotel", XPReward: 50},
	}
	cat, err := quest.NewCatalog(defs)
	require.NoError(t, err)
	return cat
}

type completeQuestFixture struct {
	state     *memState
	factory   *memUnitOfWorkFactory
	publisher *memEventPublisher
	cache     *memPathCache
	handler   *CompleteQuestHandler
}

func newCompleteQuestFixture(t *testing.T) *completeQuestFixture {
	t.Helper()

	state := newMemState()
	factory := &memUnitOfWorkFactory{s: state}
	publisher := &memEventPublisher{}
	cache := newMemPathCache()

	p, err := profile.NewProfile(profile.NewProfileParams{
		ID:           testUserID,
		Email:        "ash@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		DisplayName:  "Ash",
		InjuryType:   "concussion",
	})
	require.NoError(t, err)
	state.profiles[p.ID] = p

	handler := NewCompleteQuestHandler(
		quest.NewEvaluator(commandCatalog(t)),
		factory,
		cache,
		publisher,
	)

	return &completeQuestFixture{
		state:     state,
		factory:   factory,
		publisher: publisher,
		cache:     cache,
		handler:   handler,
	}
}

func (f *completeQuestFixture) complete(t *testing.T, key string) *CompleteQuestResult {
	t.Helper()
	res, err := f.handler.Handle(context.Background(), CompleteQuestCommand{
		UserID:   testUserID,
		QuestKey: key,
	})
	require.NoError(t, err)
	return res
}

func TestCompleteQuest_FirstCompletion(t *testing.T) {
	f := newCompleteQuestFixture(t)

	res := f.complete(t, "p1-alpha")

	assert.False(t, res.AlreadyCompleted)
	assert.False(t, res.Advanced)
	assert.Equal(t, 1, res.NewPhase)
	assert.Equal(t, 2, res.NewFlame) // ceil(20/10)
	assert.Equal(t, 20, res.XPEarned)

	prog, err := (&memProgressRepo{s: f.state}).Get(context.Background(), shared.UserID(testUserID))
	require.NoError(t, err)
	assert.Equal(t, shared.XP(20), prog.TotalXP)
	assert.Equal(t, 1, prog.QuestsCompleted)
}

func TestCompleteQuest_RepeatGrantsNothing(t *testing.T) {
	f := newCompleteQuestFixture(t)

	first := f.complete(t, "p1-alpha")
	second := f.complete(t, "p1-alpha")

	assert.True(t, second.AlreadyCompleted)
	assert.Equal(t, 0, second.XPEarned)
	assert.Equal(t, first.NewPhase, second.NewPhase)
	assert.Equal(t, first.NewFlame, second.NewFlame)

	// XP aggregate unchanged by the repeat.
	prog, err := (&memProgressRepo{s: f.state}).Get(context.Background(), shared.UserID(testUserID))
	require.NoError(t, err)
	assert.Equal(t, shared.XP(20), prog.TotalXP)
	assert.Equal(t, 1, prog.QuestsCompleted)
}

func TestCompleteQuest_UnknownKeyIsNotFound(t *testing.T) {
	f := newCompleteQuestFixture(t)

	_, err := f.handler.Handle(context.Background(), CompleteQuestCommand{
		UserID:   testUserID,
		QuestKey: "no-such-quest",
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// Threshold alone never advances: with five 20-XP quests the completion
// count reaches the threshold of 3 long before flame reaches 60.
func TestCompleteQuest_ThresholdWithoutFlameDoesNotAdvance(t *testing.T) {
	f := newCompleteQuestFixture(t)

	f.complete(t, "p1-alpha")
	f.complete(t, "p1-bravo")
	res := f.complete(t, "p1-charlie")

	assert.False(t, res.Advanced)
	assert.Equal(t, 1, res.NewPhase)
	assert.Equal(t, 6, res.NewFlame)
}

func TestCompleteQuest_AdvancesAndResetsFlame(t *testing.T) {
	f := newCompleteQuestFixture(t)

	// Pre-ignite the flame so the 60 threshold is reachable.
	p := f.state.profiles[shared.UserID(testUserID)]
	require.NoError(t, p.ApplyProgression(1, 58))

	f.complete(t, "p1-alpha") // flame 60, but only 1/5 completed

	res := f.complete(t, "p1-bravo")
	assert.False(t, res.Advanced, "2 of 5 is below the threshold of 3")

	res = f.complete(t, "p1-charlie")
	assert.True(t, res.Advanced)
	assert.Equal(t, 2, res.NewPhase)
	assert.Equal(t, 0, res.NewFlame, "flame resets to exactly zero on advancement")

	types := f.publisher.typesSeen()
	assert.Contains(t, types, string(shared.EventPhaseAdvanced))
}

func TestCompleteQuest_EventsPublished(t *testing.T) {
	f := newCompleteQuestFixture(t)

	f.complete(t, "p1-alpha")

	types := f.publisher.typesSeen()
	assert.Contains(t, types, string(shared.EventQuestCompleted))
	assert.Contains(t, types, string(shared.EventXPGained))
	assert.NotContains(t, types, string(shared.EventPhaseAdvanced))
}

func TestCompleteQuest_InvalidatesPathCache(t *testing.T) {
	f := newCompleteQuestFixture(t)

	require.NoError(t, f.cache.SetStatuses(context.Background(), shared.UserID(testUserID), quest.StatusMap{}, 0))
	f.complete(t, "p1-alpha")

	assert.Equal(t, 1, f.cache.invalidations)
	_, err := f.cache.GetStatuses(context.Background(), shared.UserID(testUserID))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCompleteQuest_Validation(t *testing.T) {
	f := newCompleteQuestFixture(t)

	_, err := f.handler.Handle(context.Background(), CompleteQuestCommand{QuestKey: "p1-alpha"})
	assert.Error(t, err)

	_, err = f.handler.Handle(context.Background(), CompleteQuestCommand{UserID: testUserID})
	assert.Error(t, err)
}

func TestCompleteQuest_CommitsTransaction(t *testing.T) {
	f := newCompleteQuestFixture(t)

	f.complete(t, "p1-alpha")

	require.NotNil(t, f.factory.last)
	assert.True(t, f.factory.last.committed)
}

// failingProgressRepo fails every AddXP, simulating an aggregate write
// error in the middle of the completion transaction.
type failingProgressRepo struct {
	profile.ProgressRepository
	err error
}

func (r *failingProgressRepo) AddXP(context.Context, shared.UserID, int) (*profile.Progress, error) {
	return nil, r.err
}

type failingUnitOfWork struct {
	*memUnitOfWork
	err error
}

func (u *failingUnitOfWork) Progress() profile.ProgressRepository {
	return &failingProgressRepo{ProgressRepository: u.memUnitOfWork.Progress(), err: u.err}
}

type failingUnitOfWorkFactory struct {
	inner *memUnitOfWorkFactory
	err   error
}

func (f *failingUnitOfWorkFactory) Begin(ctx context.Context) (profile.UnitOfWork, error) {
	uow, err := f.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingUnitOfWork{memUnitOfWork: uow.(*memUnitOfWork), err: f.err}, nil
}

func TestCompleteQuest_RollsBackOnAggregateFailure(t *testing.T) {
	f := newCompleteQuestFixture(t)
	boom := errors.New("aggregate write failed")

	handler := NewCompleteQuestHandler(
		quest.NewEvaluator(commandCatalog(t)),
		&failingUnitOfWorkFactory{inner: f.factory, err: boom},
		f.cache,
		f.publisher,
	)

	_, err := handler.Handle(context.Background(), CompleteQuestCommand{
		UserID:   testUserID,
		QuestKey: "p1-alpha",
	})
	require.ErrorIs(t, err, boom)

	uow := f.factory.last
	require.NotNil(t, uow)
	assert.False(t, uow.committed, "a failed completion must never commit")
	assert.True(t, uow.rolledBack)

	// Nothing observable leaked from the aborted transaction.
	assert.NotContains(t, f.state.progress, shared.UserID(testUserID))
	assert.Empty(t, f.publisher.typesSeen())
	assert.Equal(t, 0, f.cache.invalidations)
}

func TestCompleteQuest_ZeroXPQuestStillCounts(t *testing.T) {
	state := newMemState()
	factory := &memUnitOfWorkFactory{s: state}

	defs := []quest.Definition{
		{Key: "p1-rest", Phase: 1, Type: quest.TypeBreathing, Title: "Rest", XPReward: 0},
		{Key: "p1-walk", Phase: 1, Type: quest.TypePhysical, Title: "Walk", XPReward: 20},
		{Key: "p2-spark", Phase: 2, Type: quest.TypeBreathing, Title: "Spark", XPReward: 30},
		{Key: "p3-blaze", Phase: 3, Type: quest.TypeCognitive, Title: "Blaze", XPReward: 40},
		{Key: "p4-soar", Phase: 4, Type: quest.TypeReflection, Title: "Soar", XPReward: 50},
	}
	cat, err := quest.NewCatalog(defs)
	require.NoError(t, err)

	p, err := profile.NewProfile(profile.NewProfileParams{
		ID:           testUserID,
		Email:        "ash@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		DisplayName:  "Ash",
		InjuryType:   "concussion",
	})
	require.NoError(t, err)
	state.profiles[p.ID] = p

	handler := NewCompleteQuestHandler(quest.NewEvaluator(cat), factory, newMemPathCache(), &memEventPublisher{})

	res, err := handler.Handle(context.Background(), CompleteQuestCommand{
		UserID:   testUserID,
		QuestKey: "p1-rest",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.XPEarned)

	// A rest-day quest grants no XP but still counts as a completion.
	pr := state.progress[shared.UserID(testUserID)]
	require.NotNil(t, pr)
	assert.Equal(t, 1, pr.QuestsCompleted)
	assert.Equal(t, 0, pr.TotalXP.Int())
}

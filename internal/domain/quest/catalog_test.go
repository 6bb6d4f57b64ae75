package quest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

func TestDefaultCatalog_Invariants(t *testing.T) {
	catalog := DefaultCatalog()

	// Every phase 1-4 has at least one quest.
	for phase := shared.MinPhase; phase <= shared.MaxPhase; phase++ {
		assert.Greater(t, catalog.QuestsInPhase(phase), 0, "phase %d has no quests", phase)
	}

	// Keys are globally unique and every definition validates.
	seen := make(map[shared.QuestKey]bool)
	for _, def := range catalog.All() {
		assert.NoError(t, def.Validate())
		assert.False(t, seen[def.Key], "duplicate key %s", def.Key)
		seen[def.Key] = true
	}
}

func TestNewCatalog_RejectsDuplicateKeys(t *testing.T) {
	_, err := NewCatalog([]Definition{
		{Key: "dup-quest", Phase: 1, Type: TypeBreathing, Title: "A", XPReward: 10},
		{Key: "dup-quest", Phase: 2, Type: TypeCognitive, Title: "B", XPReward: 10},
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestNewCatalog_RejectsEmptyPhase(t *testing.T) {
	// Phase 4 has no quests.
	_, err := NewCatalog([]Definition{
		{Key: "q-one", Phase: 1, Type: TypeBreathing, Title: "A", XPReward: 10},
		{Key: "q-two", Phase: 2, Type: TypeCognitive, Title: "B", XPReward: 10},
		{Key: "q-three", Phase: 3, Type: TypeReflection, Title: "C", XPReward: 10},
	})
	assert.Error(t, err)
}

func TestCatalog_Get(t *testing.T) {
	catalog := DefaultCatalog()

	def, err := catalog.Get("first-breath")
	require.NoError(t, err)
	assert.Equal(t, shared.Phase(1), def.Phase)
	assert.Equal(t, TypeBreathing, def.Type)

	_, err = catalog.Get("unknown-quest")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCatalog_AdvanceThreshold(t *testing.T) {
	catalog, err := NewCatalog([]Definition{
		{Key: "a-quest", Phase: 1, Type: TypeBreathing, Title: "A", XPReward: 10},
		{Key: "b-quest", Phase: 1, Type: TypeBreathing, Title: "B", XPReward: 10},
		{Key: "c-quest", Phase: 1, Type: TypeBreathing, Title: "C", XPReward: 10},
		{Key: "d-quest", Phase: 1, Type: TypeBreathing, Title: "D", XPReward: 10},
		{Key: "e-quest", Phase: 1, Type: TypeBreathing, Title: "E", XPReward: 10},
		{Key: "f-quest", Phase: 2, Type: TypeBreathing, Title: "F", XPReward: 10},
		{Key: "g-quest", Phase: 3, Type: TypeBreathing, Title: "G", XPReward: 10},
		{Key: "h-quest", Phase: 3, Type: TypeBreathing, Title: "H", XPReward: 10},
		{Key: "i-quest", Phase: 4, Type: TypeBreathing, Title: "I", XPReward: 10},
	})
	require.NoError(t, err)

	// ceil(0.6 * n)
	assert.Equal(t, 3, catalog.AdvanceThreshold(1)) // ceil(3.0)
	assert.Equal(t, 1, catalog.AdvanceThreshold(2)) // ceil(0.6)
	assert.Equal(t, 2, catalog.AdvanceThreshold(3)) // ceil(1.2)
	assert.Equal(t, 1, catalog.AdvanceThreshold(4)) // ceil(0.6)
}

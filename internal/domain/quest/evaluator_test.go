package quest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// testCatalog builds a small catalog: 5 phase-1 quests worth 20 XP each,
// plus one quest per remaining phase.
func testCatalog(t *testing.T) *Catalog {
	t.Helper()

	defs := []Definition{
		{Key: "p1-alpha", Phase: 1, Type: TypeBreathing, Title: "Alpha", XPReward: 20},
		{Key: "p1-bravo", Phase: 1, Type: TypeCognitive, Title: "Bravo", XPReward: 20},
		{Key: "p1-charlie", Phase: 1, Type: TypeReflection, Title: "Charlie", XPReward: 20},
		{Key: "p1-delta", Phase: 1, Type: TypePhysical, Title: "Delta", XPReward: 20},
		{Key: "p1-echo", Phase: 1, Type: TypeGratitude, Title: "Echo", XPReward: 20},
		{Key: "p2-foxtrot", Phase: 2, Type: TypeCognitive, Title: "Foxtrot", XPReward: 40},
		{Key: "p3-golf", Phase: 3, Type: TypeCognitive, Title: "Golf", XPReward: 60},
		{Key: "p4-hotel", Phase: 4, Type: TypeCognitive, Title: "Hotel", XPReward: 80},
	}

	catalog, err := NewCatalog(defs)
	require.NoError(t, err)
	return catalog
}

func TestComputeStatuses_DefaultsByPhase(t *testing.T) {
	eval := NewEvaluator(testCatalog(t))

	statuses := eval.ComputeStatuses(nil, 1)

	// Quests at or below the user's phase are available without a record.
	assert.Equal(t, StatusAvailable, statuses.StatusOf("p1-alpha"))
	assert.Equal(t, StatusAvailable, statuses.StatusOf("p1-echo"))

	// Quests above the user's phase are locked.
	assert.Equal(t, StatusLocked, statuses.StatusOf("p2-foxtrot"))
	assert.Equal(t, StatusLocked, statuses.StatusOf("p3-golf"))
	assert.Equal(t, StatusLocked, statuses.StatusOf("p4-hotel"))
}

func TestComputeStatuses_PersistedStatusWins(t *testing.T) {
	eval := NewEvaluator(testCatalog(t))

	records := []*Record{
		{UserID: "u1", QuestKey: "p1-alpha", Status: StatusCompleted, Phase: 1, XPReward: 20},
		{UserID: "u1", QuestKey: "p1-bravo", Status: StatusInProgress, Phase: 1, XPReward: 20},
	}

	statuses := eval.ComputeStatuses(records, 1)

	assert.Equal(t, StatusCompleted, statuses.StatusOf("p1-alpha"))
	assert.Equal(t, StatusInProgress, statuses.StatusOf("p1-bravo"))
	assert.Equal(t, StatusAvailable, statuses.StatusOf("p1-charlie"))
}

func TestStatusOf_UnknownKeyIsLocked(t *testing.T) {
	eval := NewEvaluator(testCatalog(t))

	statuses := eval.ComputeStatuses(nil, 4)

	// Never panics, never errors: unknown keys read as locked.
	assert.Equal(t, StatusLocked, statuses.StatusOf("no-such-quest"))
}

func TestGuestStatuses(t *testing.T) {
	eval := NewEvaluator(testCatalog(t))

	statuses := eval.GuestStatuses()

	assert.Equal(t, StatusAvailable, statuses.StatusOf("p1-alpha"))
	assert.Equal(t, StatusLocked, statuses.StatusOf("p2-foxtrot"))
	assert.Equal(t, StatusLocked, statuses.StatusOf("p4-hotel"))
}

func TestFlameGain_Formula(t *testing.T) {
	// flameGain = min(ceil(xpReward/10), 15)
	assert.Equal(t, 2, Definition{XPReward: 20}.FlameGain())
	assert.Equal(t, 3, Definition{XPReward: 21}.FlameGain())
	assert.Equal(t, 1, Definition{XPReward: 1}.FlameGain())
	assert.Equal(t, 0, Definition{XPReward: 0}.FlameGain())
	assert.Equal(t, 15, Definition{XPReward: 150}.FlameGain())
	assert.Equal(t, 15, Definition{XPReward: 1000}.FlameGain())
}

func TestEvaluateCompletion_NoAdvanceBelowThreshold(t *testing.T) {
	catalog := testCatalog(t)
	eval := NewEvaluator(catalog)
	def, err := catalog.Get("p1-alpha")
	require.NoError(t, err)

	// 1 of 5 completed, threshold is ceil(0.6*5)=3.
	result := eval.EvaluateCompletion(def, 1, 0, 1)

	assert.False(t, result.Advanced)
	assert.Equal(t, shared.Phase(1), result.NewPhase)
	assert.Equal(t, shared.FlameStrength(2), result.NewFlame)
	assert.Equal(t, 20, result.XPEarned)
}

func TestEvaluateCompletion_AndSemantics(t *testing.T) {
	catalog := testCatalog(t)
	eval := NewEvaluator(catalog)
	def, err := catalog.Get("p1-alpha")
	require.NoError(t, err)

	// Quest threshold met, flame condition not met: no advance.
	result := eval.EvaluateCompletion(def, 1, 40, 3)
	assert.False(t, result.Advanced, "flame 42 < 60 must block advancement")
	assert.Equal(t, shared.FlameStrength(42), result.NewFlame)

	// Flame condition met, quest threshold not met: no advance.
	result = eval.EvaluateCompletion(def, 1, 70, 2)
	assert.False(t, result.Advanced, "2 of 5 completed must block advancement")
	assert.Equal(t, shared.FlameStrength(72), result.NewFlame)

	// Both conditions met: advance, flame resets to exactly 0.
	result = eval.EvaluateCompletion(def, 1, 60, 3)
	assert.True(t, result.Advanced)
	assert.Equal(t, shared.Phase(2), result.NewPhase)
	assert.Equal(t, shared.FlameStrength(0), result.NewFlame)
}

func TestEvaluateCompletion_NoAdvancePastFinalPhase(t *testing.T) {
	catalog := testCatalog(t)
	eval := NewEvaluator(catalog)
	def, err := catalog.Get("p4-hotel")
	require.NoError(t, err)

	result := eval.EvaluateCompletion(def, 4, 95, 1)

	assert.False(t, result.Advanced)
	assert.Equal(t, shared.Phase(4), result.NewPhase)
	// Capped at 100.
	assert.Equal(t, shared.FlameStrength(100), result.NewFlame)
}

func TestEvaluateCompletion_FlameAlwaysInRange(t *testing.T) {
	catalog := testCatalog(t)
	eval := NewEvaluator(catalog)

	flame := shared.FlameStrength(0)
	phase := shared.Phase(4) // final phase, flame never resets
	for i := 0; i < 50; i++ {
		def, err := catalog.Get("p4-hotel")
		require.NoError(t, err)
		result := eval.EvaluateCompletion(def, phase, flame, 1)
		flame = result.NewFlame
		assert.True(t, flame.IsValid(), "flame %d out of range after %d completions", flame, i+1)
	}
	assert.Equal(t, shared.FlameStrength(100), flame)
}

// The concrete scenario demonstrating the AND requirement: 5 phase-1 quests
// worth 20 XP each, user completes 3 sequentially. Threshold (3) is met after
// the third completion but flame is only 6, so the phase must not advance.
func TestEvaluateCompletion_ThresholdMetButFlameTooLow(t *testing.T) {
	catalog := testCatalog(t)
	eval := NewEvaluator(catalog)

	keys := []shared.QuestKey{"p1-alpha", "p1-bravo", "p1-charlie"}
	phase := shared.Phase(1)
	flame := shared.FlameStrength(0)

	var last CompletionResult
	for i, key := range keys {
		def, err := catalog.Get(key)
		require.NoError(t, err)
		last = eval.EvaluateCompletion(def, phase, flame, i+1)
		phase = last.NewPhase
		flame = last.NewFlame
	}

	assert.Equal(t, 3, catalog.AdvanceThreshold(1))
	assert.False(t, last.Advanced)
	assert.Equal(t, shared.Phase(1), last.NewPhase)
	assert.Equal(t, shared.FlameStrength(6), last.NewFlame)
}

func TestRecord_CompleteIsIdempotent(t *testing.T) {
	def := Definition{Key: "p1-alpha", Phase: 1, Type: TypeBreathing, Title: "Alpha", XPReward: 20}
	rec := NewRecord("u1", def)

	first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repeat := rec.Complete(first, map[string]interface{}{"duration_sec": 120})
	assert.False(t, repeat)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, first, rec.CompletedAt)

	// Re-completing refreshes timestamp and metadata but reports repeat=true.
	second := first.Add(time.Hour)
	repeat = rec.Complete(second, map[string]interface{}{"duration_sec": 90, "note": "again"})
	assert.True(t, repeat)
	assert.Equal(t, second, rec.CompletedAt)
	assert.Equal(t, 90, rec.Metadata["duration_sec"])
	assert.Equal(t, "again", rec.Metadata["note"])
}

func TestRecord_Begin(t *testing.T) {
	rec := &Record{UserID: "u1", QuestKey: "p1-alpha", Status: StatusAvailable, Phase: 1}

	require.NoError(t, rec.Begin())
	assert.Equal(t, StatusInProgress, rec.Status)

	assert.ErrorIs(t, rec.Begin(), shared.ErrQuestAlreadyBegun)

	rec.Status = StatusCompleted
	assert.ErrorIs(t, rec.Begin(), shared.ErrQuestCompleted)
}

package recommendation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

func TestFallbackGenerator_AllPhasesProduceValidPayloads(t *testing.T) {
	gen := NewFallbackGenerator()
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	for phase := shared.MinPhase; phase <= shared.MaxPhase; phase++ {
		rec, err := gen.Generate(context.Background(), PromptContext{
			UserID: "5f0c3a7e-4c1d-4b2a-9f6e-1a2b3c4d5e6f",
			Phase:  phase,
		}, day)
		require.NoError(t, err, "phase %d", phase)

		assert.Equal(t, SourceFallback, rec.Source)
		assert.NoError(t, rec.Payload.Validate())
		assert.True(t, rec.IsFallback())
	}
}

// The fallback object must be structurally identical to a normal payload:
// same required keys, valid module, positive duration.
func TestFallbackPayload_SameShapeAsSuccess(t *testing.T) {
	for phase := shared.MinPhase; phase <= shared.MaxPhase; phase++ {
		payload := FallbackPayload(phase)

		assert.True(t, payload.Module.IsValid())
		assert.NotEmpty(t, payload.Exercise)
		assert.Greater(t, payload.Duration, 0)
		assert.NotEmpty(t, payload.Reason)
		assert.NotEmpty(t, payload.Message)
		assert.NotEmpty(t, payload.Insight)
	}
}

func TestFallbackPayload_InvalidPhaseDefaultsToFirst(t *testing.T) {
	assert.Equal(t, FallbackPayload(1), FallbackPayload(0))
	assert.Equal(t, FallbackPayload(1), FallbackPayload(9))
}

func TestNew_RejectsInvalidPayload(t *testing.T) {
	day := time.Now()

	_, err := New("5f0c3a7e-4c1d-4b2a-9f6e-1a2b3c4d5e6f", day, Payload{
		Module:   "yoga", // not in the closed enum
		Exercise: "Sun salutation",
		Duration: 10,
	}, SourceGemini, "gemini-2.0-flash")
	assert.ErrorIs(t, err, shared.ErrInvalidModule)

	_, err = New("5f0c3a7e-4c1d-4b2a-9f6e-1a2b3c4d5e6f", day, Payload{
		Module:   ModuleBreathing,
		Exercise: "",
		Duration: 10,
	}, SourceGemini, "gemini-2.0-flash")
	assert.Error(t, err)
}

func TestRecommendation_DateTruncatedToDay(t *testing.T) {
	at := time.Date(2026, 8, 28, 15, 42, 7, 0, time.UTC)

	rec, err := New("5f0c3a7e-4c1d-4b2a-9f6e-1a2b3c4d5e6f", at, FallbackPayload(2), SourceFallback, "")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, "2026-08-28", rec.DayKey())
}

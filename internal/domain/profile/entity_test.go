package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

func newTestProfile(t *testing.T) *Profile {
	t.Helper()

	p, err := NewProfile(NewProfileParams{
		ID:           "5f0c3a7e-4c1d-4b2a-9f6e-1a2b3c4d5e6f",
		Email:        "ash@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		DisplayName:  "Ash",
		InjuryType:   "concussion",
	})
	require.NoError(t, err)
	return p
}

func TestNewProfile_Defaults(t *testing.T) {
	p := newTestProfile(t)

	assert.Equal(t, shared.Phase(1), p.PhoenixPhase)
	assert.Equal(t, shared.FlameStrength(0), p.FlameStrength)
	assert.Equal(t, 15, p.DailyGoalMinutes)
}

func TestNewProfile_Validation(t *testing.T) {
	_, err := NewProfile(NewProfileParams{
		ID:           "5f0c3a7e-4c1d-4b2a-9f6e-1a2b3c4d5e6f",
		Email:        "not-an-email",
		PasswordHash: "hash",
		DisplayName:  "Ash",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidEmail)

	_, err = NewProfile(NewProfileParams{
		ID:           "5f0c3a7e-4c1d-4b2a-9f6e-1a2b3c4d5e6f",
		Email:        "ash@example.com",
		PasswordHash: "",
		DisplayName:  "Ash",
	})
	assert.Error(t, err)
}

func TestApplyProgression_PhaseIsMonotonic(t *testing.T) {
	p := newTestProfile(t)

	require.NoError(t, p.ApplyProgression(2, 0))
	assert.Equal(t, shared.Phase(2), p.PhoenixPhase)

	// Phase can never decrease.
	err := p.ApplyProgression(1, 50)
	assert.ErrorIs(t, err, shared.ErrStateTransition)
	assert.Equal(t, shared.Phase(2), p.PhoenixPhase)
}

func TestApplyProgression_FlameRange(t *testing.T) {
	p := newTestProfile(t)

	require.NoError(t, p.ApplyProgression(1, 100))
	assert.Equal(t, shared.FlameStrength(100), p.FlameStrength)

	err := p.ApplyProgression(1, 101)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestProgress_AddXPIsIncremental(t *testing.T) {
	pr := NewProgress("5f0c3a7e-4c1d-4b2a-9f6e-1a2b3c4d5e6f")

	pr.AddXP(20)
	pr.AddXP(40)

	assert.Equal(t, shared.XP(60), pr.TotalXP)
	assert.Equal(t, 2, pr.QuestsCompleted)
}

func TestIsLapsed(t *testing.T) {
	p := newTestProfile(t)

	p.LastCheckInAt = time.Now().Add(-10 * 24 * time.Hour)
	assert.True(t, p.IsLapsed(7*24*time.Hour))

	p.LastCheckInAt = time.Now().Add(-2 * 24 * time.Hour)
	assert.False(t, p.IsLapsed(7*24*time.Hour))
}

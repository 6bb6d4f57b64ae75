package checkin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

const testUserID = shared.UserID("5f0c3a7e-4c1d-4b2a-9f6e-1a2b3c4d5e6f")

func TestNewCheckIn_Validation(t *testing.T) {
	day := time.Date(2026, 8, 27, 9, 30, 0, 0, time.UTC)

	c, err := NewCheckIn(testUserID, day, 4, 3, 2, 7.5, "slept well")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), c.Date)
	assert.Equal(t, "2026-08-27", c.DayKey())

	_, err = NewCheckIn(testUserID, day, 0, 3, 2, 7.5, "")
	assert.ErrorIs(t, err, shared.ErrInvalidMood)

	_, err = NewCheckIn(testUserID, day, 4, 6, 2, 7.5, "")
	assert.ErrorIs(t, err, shared.ErrInvalidEnergy)

	_, err = NewCheckIn(testUserID, day, 4, 3, 11, 7.5, "")
	assert.ErrorIs(t, err, shared.ErrInvalidPain)

	_, err = NewCheckIn(testUserID, day, 4, 3, 2, 25, "")
	assert.Error(t, err)
}

func TestStreak_ConsecutiveDays(t *testing.T) {
	s := NewStreak(testUserID)

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Record(day.AddDate(0, 0, i))
	}

	assert.Equal(t, 5, s.CurrentStreak)
	assert.Equal(t, 5, s.BestStreak)
}

func TestStreak_SameDayDoesNotDoubleCount(t *testing.T) {
	s := NewStreak(testUserID)
	day := time.Date(2026, 8, 20, 8, 0, 0, 0, time.UTC)

	s.Record(day)
	s.Record(day.Add(6 * time.Hour))

	assert.Equal(t, 1, s.CurrentStreak)
}

func TestStreak_GapResets(t *testing.T) {
	s := NewStreak(testUserID)
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	s.Record(day)
	s.Record(day.AddDate(0, 0, 1))
	s.Record(day.AddDate(0, 0, 2))
	// Two days missed.
	s.Record(day.AddDate(0, 0, 5))

	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 3, s.BestStreak)
}

func TestStreak_BackdatedDayIsIgnored(t *testing.T) {
	s := NewStreak(testUserID)
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	s.Record(day)
	s.Record(day.AddDate(0, 0, 1))
	s.Record(day.AddDate(0, 0, 2))

	// An earlier day must neither reset the count nor move LastDate back.
	s.Record(day.AddDate(0, 0, -3))

	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 3, s.BestStreak)
	assert.Equal(t, day.AddDate(0, 0, 2), s.LastDate)
}

func TestSummarize(t *testing.T) {
	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	c1, err := NewCheckIn(testUserID, day, 4, 4, 2, 8, "")
	require.NoError(t, err)
	c2, err := NewCheckIn(testUserID, day.AddDate(0, 0, 1), 2, 2, 6, 6, "rough day")
	require.NoError(t, err)

	summary := Summarize(testUserID, []*CheckIn{c1, c2})

	assert.Equal(t, 2, summary.DaysReported)
	assert.InDelta(t, 3.0, summary.AvgMood, 0.001)
	assert.InDelta(t, 3.0, summary.AvgEnergy, 0.001)
	assert.InDelta(t, 4.0, summary.AvgPain, 0.001)
	assert.InDelta(t, 7.0, summary.AvgSleep, 0.001)
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(testUserID, nil)
	assert.Equal(t, 0, summary.DaysReported)
	assert.Zero(t, summary.AvgMood)
}

package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

type recordCheckInFixture struct {
	state     *memState
	publisher *memEventPublisher
	handler   *RecordCheckInHandler
}

func newRecordCheckInFixture(t *testing.T) *recordCheckInFixture {
	t.Helper()

	state := newMemState()
	publisher := &memEventPublisher{}

	p, err := profile.NewProfile(profile.NewProfileParams{
		ID:           testUserID,
		Email:        "ash@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		DisplayName:  "Ash",
		InjuryType:   "concussion",
	})
	require.NoError(t, err)
	state.profiles[p.ID] = p

	handler := NewRecordCheckInHandler(
		&memCheckInRepo{s: state},
		&memProfileRepo{s: state},
		publisher,
	)

	return &recordCheckInFixture{
		state:     state,
		publisher: publisher,
		handler:   handler,
	}
}

func (f *recordCheckInFixture) record(t *testing.T, at time.Time) *RecordCheckInResult {
	t.Helper()

	result, err := f.handler.Handle(context.Background(), RecordCheckInCommand{
		UserID:     testUserID,
		Mood:       4,
		Energy:     3,
		Pain:       2,
		SleepHours: 7.5,
		Timestamp:  at,
	})
	require.NoError(t, err)
	return result
}

func TestRecordCheckInFirstTime(t *testing.T) {
	f := newRecordCheckInFixture(t)
	now := time.Now().UTC()

	result := f.record(t, now)

	assert.Equal(t, 1, result.CurrentStreak)
	assert.Equal(t, 1, result.BestStreak)
	assert.False(t, result.StreakBroken)
	assert.False(t, result.Overwrote)
	assert.Equal(t, shared.DayKey(now), result.Date)

	// Lapse detection relies on the profile activity mark.
	p := f.state.profiles[shared.UserID(testUserID)]
	assert.Equal(t, now, p.LastCheckInAt)

	assert.Contains(t, f.publisher.typesSeen(), string(shared.EventCheckInRecorded))
}

func TestRecordCheckInConsecutiveDaysExtendStreak(t *testing.T) {
	f := newRecordCheckInFixture(t)
	now := time.Now().UTC()

	f.record(t, now.AddDate(0, 0, -1))
	result := f.record(t, now)

	assert.Equal(t, 2, result.CurrentStreak)
	assert.Equal(t, 2, result.BestStreak)
	assert.False(t, result.StreakBroken)
}

func TestRecordCheckInSameDayOverwrites(t *testing.T) {
	f := newRecordCheckInFixture(t)
	now := time.Now().UTC()

	f.record(t, now)
	result := f.record(t, now)

	assert.True(t, result.Overwrote)
	assert.Equal(t, 1, result.CurrentStreak, "same-day resubmission leaves the streak alone")
}

func TestRecordCheckInAfterGapBreaksStreak(t *testing.T) {
	f := newRecordCheckInFixture(t)
	now := time.Now().UTC()

	f.record(t, now.AddDate(0, 0, -4))
	f.record(t, now.AddDate(0, 0, -3))
	result := f.record(t, now)

	assert.True(t, result.StreakBroken)
	assert.Equal(t, 1, result.CurrentStreak)
	assert.Equal(t, 2, result.BestStreak)

	assert.Contains(t, f.publisher.typesSeen(), string(shared.EventStreakBroken))
}

func TestRecordCheckInRejectsInvalidMood(t *testing.T) {
	f := newRecordCheckInFixture(t)

	_, err := f.handler.Handle(context.Background(), RecordCheckInCommand{
		UserID: testUserID,
		Mood:   9,
		Energy: 3,
		Pain:   2,
	})

	assert.ErrorIs(t, err, shared.ErrInvalidMood)
}

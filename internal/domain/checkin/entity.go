// Package checkin contains domain entities and business logic for
// daily mood/energy/sleep check-ins. Check-ins are consumed by the
// recommendation adapter and by lapse detection.
// This is a pure domain layer with zero external dependencies.
package checkin

import (
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// CheckIn represents one daily self-reported snapshot.
// Exactly one check-in exists per (user, date); a second submission
// for the same date overwrites the first (upsert semantics).
type CheckIn struct {
	UserID shared.UserID

	// Date is the check-in day truncated to midnight UTC.
	Date time.Time

	Mood   shared.MoodScore
	Energy shared.EnergyScore
	Pain   shared.PainLevel

	// SleepHours is self-reported sleep for the previous night.
	SleepHours float64

	// Note is an optional free-text remark.
	Note string

	CreatedAt time.Time
}

// NewCheckIn creates a validated check-in for the given day.
func NewCheckIn(userID shared.UserID, day time.Time, mood, energy, pain int, sleepHours float64, note string) (*CheckIn, error) {
	if userID.IsEmpty() {
		return nil, shared.NewDomainError("checkin", "New", shared.ErrEmptyValue, "user ID is required")
	}

	m, err := shared.NewMoodScore(mood)
	if err != nil {
		return nil, err
	}
	e, err := shared.NewEnergyScore(energy)
	if err != nil {
		return nil, err
	}
	p, err := shared.NewPainLevel(pain)
	if err != nil {
		return nil, err
	}

	if sleepHours < 0 || sleepHours > 24 {
		return nil, shared.NewDomainError("checkin", "New", shared.ErrValueOutOfRange, "sleep hours must be between 0 and 24")
	}
	if day.After(time.Now().UTC().Add(time.Minute)) { // Allow 1 minute tolerance
		return nil, shared.NewDomainError("checkin", "New", shared.ErrFutureTimestamp, "check-in date cannot be in the future")
	}

	return &CheckIn{
		UserID:     userID,
		Date:       truncateToDay(day),
		Mood:       m,
		Energy:     e,
		Pain:       p,
		SleepHours: sleepHours,
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// DayKey returns the canonical YYYY-MM-DD key for this check-in.
func (c *CheckIn) DayKey() string {
	return shared.DayKey(c.Date)
}

// IsToday reports whether the check-in belongs to the current UTC day.
func (c *CheckIn) IsToday() bool {
	return c.Date.Equal(truncateToDay(time.Now().UTC()))
}

// truncateToDay returns the date portion of a time (midnight UTC).
func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Streak tracks consecutive days with a check-in.
type Streak struct {
	UserID        shared.UserID
	CurrentStreak int
	BestStreak    int
	LastDate      time.Time
}

// NewStreak creates an empty streak tracker.
func NewStreak(userID shared.UserID) *Streak {
	return &Streak{UserID: userID}
}

// Record updates the streak with a check-in on the given day.
func (s *Streak) Record(day time.Time) {
	dayOnly := truncateToDay(day)

	if s.LastDate.IsZero() {
		s.CurrentStreak = 1
		s.BestStreak = 1
		s.LastDate = dayOnly
		return
	}

	daysDiff := int(dayOnly.Sub(truncateToDay(s.LastDate)).Hours() / 24)

	// A backdated day never regresses the streak state.
	if daysDiff < 0 {
		return
	}

	switch daysDiff {
	case 0:
		// Same day, streak unchanged.
		return
	case 1:
		s.CurrentStreak++
		if s.CurrentStreak > s.BestStreak {
			s.BestStreak = s.CurrentStreak
		}
	default:
		// Gap of more than one day breaks the streak.
		s.CurrentStreak = 1
	}

	s.LastDate = dayOnly
}

// IsBroken reports whether the streak has lapsed (yesterday was missed).
func (s *Streak) IsBroken() bool {
	if s.LastDate.IsZero() {
		return false
	}
	daysDiff := int(truncateToDay(time.Now().UTC()).Sub(truncateToDay(s.LastDate)).Hours() / 24)
	return daysDiff > 1
}

// WeekSummary aggregates the last seven days of check-ins for the
// recommendation prompt.
type WeekSummary struct {
	UserID       shared.UserID
	Days         []*CheckIn
	AvgMood      float64
	AvgEnergy    float64
	AvgPain      float64
	AvgSleep     float64
	DaysReported int
}

// Summarize builds a WeekSummary from a slice of check-ins.
func Summarize(userID shared.UserID, days []*CheckIn) *WeekSummary {
	summary := &WeekSummary{
		UserID: userID,
		Days:   days,
	}

	if len(days) == 0 {
		return summary
	}

	var mood, energy, pain, sleep float64
	for _, c := range days {
		mood += float64(c.Mood)
		energy += float64(c.Energy)
		pain += float64(c.Pain)
		sleep += c.SleepHours
	}

	n := float64(len(days))
	summary.AvgMood = mood / n
	summary.AvgEnergy = energy / n
	summary.AvgPain = pain / n
	summary.AvgSleep = sleep / n
	summary.DaysReported = len(days)

	return summary
}

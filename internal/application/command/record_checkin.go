package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/checkin"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD CHECK-IN COMMAND
// Persists the daily mood/energy/pain/sleep snapshot. One row per
// (user, date); resubmitting the same day overwrites.
// ══════════════════════════════════════════════════════════════════════════════

// RecordCheckInCommand contains the data for a daily check-in.
type RecordCheckInCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// Mood on a 1-5 scale.
	Mood int

	// Energy on a 1-5 scale.
	Energy int

	// Pain on a 0-10 scale.
	Pain int

	// SleepHours is self-reported sleep for the previous night.
	SleepHours float64

	// Note is an optional free-text remark.
	Note string

	// Timestamp is when the check-in occurred (defaults to now if zero).
	Timestamp time.Time
}

// Validate validates the command.
func (c RecordCheckInCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("record_checkin: user_id is required")
	}
	return nil
}

// RecordCheckInResult contains the result of recording a check-in.
type RecordCheckInResult struct {
	// UserID is the internal ID of the user.
	UserID string

	// Date is the check-in day (YYYY-MM-DD).
	Date string

	// CurrentStreak is the streak after this check-in.
	CurrentStreak int

	// BestStreak is the best streak ever reached.
	BestStreak int

	// StreakBroken is true when the previous streak lapsed before this check-in.
	StreakBroken bool

	// Overwrote is true when a check-in for the same day already existed.
	Overwrote bool

	// Events contains domain events generated.
	Events []shared.Event
}

// RecordCheckInHandler handles the RecordCheckInCommand.
type RecordCheckInHandler struct {
	checkinRepo    checkin.Repository
	profileRepo    profile.Repository
	eventPublisher shared.EventPublisher
}

// NewRecordCheckInHandler creates a new RecordCheckInHandler.
func NewRecordCheckInHandler(
	checkinRepo checkin.Repository,
	profileRepo profile.Repository,
	eventPublisher shared.EventPublisher,
) *RecordCheckInHandler {
	return &RecordCheckInHandler{
		checkinRepo:    checkinRepo,
		profileRepo:    profileRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the record check-in command.
func (h *RecordCheckInHandler) Handle(ctx context.Context, cmd RecordCheckInCommand) (*RecordCheckInResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_checkin: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	c, err := checkin.NewCheckIn(userID, timestamp, cmd.Mood, cmd.Energy, cmd.Pain, cmd.SleepHours, cmd.Note)
	if err != nil {
		return nil, err
	}

	overwrote := false
	if _, err := h.checkinRepo.Get(ctx, userID, c.Date); err == nil {
		overwrote = true
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("record_checkin: load existing: %w", err)
	}

	if err := h.checkinRepo.Upsert(ctx, c); err != nil {
		return nil, fmt.Errorf("record_checkin: save: %w", err)
	}

	// Streak bookkeeping. A same-day resubmission leaves the streak alone.
	streak, err := h.checkinRepo.GetStreak(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("record_checkin: load streak: %w", err)
	}

	previousStreak := streak.CurrentStreak
	previousLastDate := streak.LastDate
	brokenBefore := streak.IsBroken()
	streak.Record(c.Date)

	if err := h.checkinRepo.SaveStreak(ctx, streak); err != nil {
		return nil, fmt.Errorf("record_checkin: save streak: %w", err)
	}

	// Mark activity on the profile so lapse detection sees the check-in.
	prof, err := h.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("record_checkin: load profile: %w", err)
	}
	prof.RecordCheckIn(timestamp)
	if err := h.profileRepo.Update(ctx, prof); err != nil {
		return nil, fmt.Errorf("record_checkin: save profile: %w", err)
	}

	result := &RecordCheckInResult{
		UserID:        cmd.UserID,
		Date:          c.DayKey(),
		CurrentStreak: streak.CurrentStreak,
		BestStreak:    streak.BestStreak,
		StreakBroken:  brokenBefore,
		Overwrote:     overwrote,
		Events:        make([]shared.Event, 0, 2),
	}

	recorded := shared.NewCheckInRecordedEvent(cmd.UserID, c.DayKey(), cmd.Mood, cmd.Energy)
	result.Events = append(result.Events, recorded)
	if h.eventPublisher != nil {
		_ = h.eventPublisher.Publish(recorded)
	}

	if brokenBefore && previousStreak > 1 {
		broken := shared.NewStreakBrokenEvent(cmd.UserID, previousStreak, daysBetween(previousLastDate, timestamp))
		result.Events = append(result.Events, broken)
		if h.eventPublisher != nil {
			_ = h.eventPublisher.Publish(broken)
		}
	}

	return result, nil
}

// daysBetween returns whole UTC days between two timestamps.
func daysBetween(from, to time.Time) int {
	fromDay := time.Date(from.UTC().Year(), from.UTC().Month(), from.UTC().Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.UTC().Year(), to.UTC().Month(), to.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return int(toDay.Sub(fromDay).Hours() / 24)
}

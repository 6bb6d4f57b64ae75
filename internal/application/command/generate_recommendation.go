package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/checkin"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE RECOMMENDATION COMMAND
// Produces the daily recommendation: LLM first, static fallback on any
// generator failure. Only real LLM output is persisted; a fallback is
// served but not stored, so a later retry can still get a real one.
// ══════════════════════════════════════════════════════════════════════════════

// GenerateRecommendationCommand contains the data to generate a recommendation.
type GenerateRecommendationCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// Day is the recommendation day (defaults to today if zero).
	Day time.Time

	// Force regenerates even when a stored recommendation exists for the day.
	Force bool
}

// Validate validates the command.
func (c GenerateRecommendationCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("generate_recommendation: user_id is required")
	}
	return nil
}

// GenerateRecommendationResult contains the generated recommendation.
type GenerateRecommendationResult struct {
	// Recommendation is the generated or stored recommendation.
	Recommendation *recommendation.Recommendation

	// FromStore is true when an already-persisted recommendation was returned.
	FromStore bool

	// Degraded is true when the LLM failed and the fallback was served.
	Degraded bool

	// Cause holds the LLM error when Degraded is true.
	Cause error

	// Events contains domain events generated.
	Events []shared.Event
}

// GenerateRecommendationConfig contains handler configuration.
type GenerateRecommendationConfig struct {
	// HistoryDays is how many days of check-ins feed the prompt.
	HistoryDays int
}

// DefaultGenerateRecommendationConfig returns the default configuration.
func DefaultGenerateRecommendationConfig() GenerateRecommendationConfig {
	return GenerateRecommendationConfig{
		HistoryDays: 7,
	}
}

// GenerateRecommendationHandler handles the GenerateRecommendationCommand.
type GenerateRecommendationHandler struct {
	profileRepo    profile.Repository
	progressRepo   profile.ProgressRepository
	checkinRepo    checkin.Repository
	recRepo        recommendation.Repository
	generator      recommendation.Generator
	fallback       *recommendation.FallbackGenerator
	eventPublisher shared.EventPublisher
	config         GenerateRecommendationConfig
}

// NewGenerateRecommendationHandler creates a new GenerateRecommendationHandler.
// generator may be nil; the handler then always serves the fallback.
func NewGenerateRecommendationHandler(
	profileRepo profile.Repository,
	progressRepo profile.ProgressRepository,
	checkinRepo checkin.Repository,
	recRepo recommendation.Repository,
	generator recommendation.Generator,
	eventPublisher shared.EventPublisher,
	config GenerateRecommendationConfig,
) *GenerateRecommendationHandler {
	if config.HistoryDays <= 0 {
		config = DefaultGenerateRecommendationConfig()
	}
	return &GenerateRecommendationHandler{
		profileRepo:    profileRepo,
		progressRepo:   progressRepo,
		checkinRepo:    checkinRepo,
		recRepo:        recRepo,
		generator:      generator,
		fallback:       recommendation.NewFallbackGenerator(),
		eventPublisher: eventPublisher,
		config:         config,
	}
}

// Handle executes the generate recommendation command.
func (h *GenerateRecommendationHandler) Handle(ctx context.Context, cmd GenerateRecommendationCommand) (*GenerateRecommendationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("generate_recommendation: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}

	day := cmd.Day
	if day.IsZero() {
		day = time.Now().UTC()
	}

	if !cmd.Force {
		if stored, err := h.recRepo.Get(ctx, userID, day); err == nil {
			return &GenerateRecommendationResult{
				Recommendation: stored,
				FromStore:      true,
			}, nil
		} else if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("generate_recommendation: load stored: %w", err)
		}
	}

	prompt, err := h.assemblePrompt(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &GenerateRecommendationResult{
		Events: make([]shared.Event, 0, 1),
	}

	if h.generator != nil {
		rec, genErr := h.generator.Generate(ctx, prompt, day)
		if genErr == nil {
			if err := h.recRepo.Upsert(ctx, rec); err != nil {
				return nil, fmt.Errorf("generate_recommendation: save: %w", err)
			}

			result.Recommendation = rec
			event := shared.NewRecommendationGeneratedEvent(cmd.UserID, rec.DayKey(), string(rec.Payload.Module), string(rec.Source))
			result.Events = append(result.Events, event)
			h.publish(event)
			return result, nil
		}
		result.Cause = genErr
	}

	// Fallback path: same payload shape, not persisted.
	rec, err := h.fallback.Generate(ctx, prompt, day)
	if err != nil {
		return nil, fmt.Errorf("generate_recommendation: fallback: %w", err)
	}

	result.Recommendation = rec
	result.Degraded = true

	cause := "generator unavailable"
	if result.Cause != nil {
		cause = result.Cause.Error()
	}
	event := shared.NewRecommendationFellBackEvent(cmd.UserID, rec.DayKey(), cause)
	result.Events = append(result.Events, event)
	h.publish(event)

	return result, nil
}

// assemblePrompt gathers profile, progress and check-in history into a
// generator prompt context.
func (h *GenerateRecommendationHandler) assemblePrompt(ctx context.Context, userID shared.UserID) (recommendation.PromptContext, error) {
	prof, err := h.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return recommendation.PromptContext{}, fmt.Errorf("generate_recommendation: load profile: %w", err)
	}

	progress, err := h.progressRepo.Get(ctx, userID)
	if err != nil {
		return recommendation.PromptContext{}, fmt.Errorf("generate_recommendation: load progress: %w", err)
	}

	streak, err := h.checkinRepo.GetStreak(ctx, userID)
	if err != nil {
		return recommendation.PromptContext{}, fmt.Errorf("generate_recommendation: load streak: %w", err)
	}

	history, err := h.checkinRepo.ListRecent(ctx, userID, h.config.HistoryDays)
	if err != nil {
		return recommendation.PromptContext{}, fmt.Errorf("generate_recommendation: load check-ins: %w", err)
	}

	prompt := recommendation.PromptContext{
		UserID:           userID,
		DisplayName:      prof.DisplayName,
		InjuryType:       prof.InjuryType,
		RecoveryGoals:    prof.RecoveryGoals,
		DailyGoalMinutes: prof.DailyGoalMinutes,
		Phase:            prof.PhoenixPhase,
		Level:            progress.Level(),
		TotalXP:          progress.TotalXP,
		Streak:           streak.CurrentStreak,
		WeekCheckIns:     make([]recommendation.DaySnapshot, 0, len(history)),
	}

	todayKey := shared.DayKey(time.Now().UTC())

	// History arrives newest first; the prompt wants oldest first.
	for i := len(history) - 1; i >= 0; i-- {
		c := history[i]
		snapshot := recommendation.DaySnapshot{
			Date:       c.DayKey(),
			Mood:       int(c.Mood),
			Energy:     int(c.Energy),
			Pain:       int(c.Pain),
			SleepHours: c.SleepHours,
			Note:       c.Note,
		}
		prompt.WeekCheckIns = append(prompt.WeekCheckIns, snapshot)

		if snapshot.Date == todayKey {
			today := snapshot
			prompt.Today = &today
		}
	}

	return prompt, nil
}

func (h *GenerateRecommendationHandler) publish(event shared.Event) {
	if h.eventPublisher != nil {
		_ = h.eventPublisher.Publish(event)
	}
}

// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE QUEST COMMAND
// The single write path for quest completion. Applies four effects as one
// database transaction: record upsert, flame update, phase advancement check,
// XP aggregate increment. No partial state is observable by a concurrent read.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteQuestCommand contains the data to complete a quest.
type CompleteQuestCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// QuestKey is the catalog key of the quest being completed.
	QuestKey string

	// Metadata contains quest-specific completion detail, merged into the record.
	Metadata map[string]interface{}

	// Timestamp is when the completion occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteQuestCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("complete_quest: user_id is required")
	}
	if c.QuestKey == "" {
		return errors.New("complete_quest: quest_key is required")
	}
	return nil
}

// CompleteQuestResult contains the result of completing a quest.
type CompleteQuestResult struct {
	// UserID is the internal ID of the user.
	UserID string

	// QuestKey is the completed quest.
	QuestKey string

	// Advanced indicates whether the phoenix phase advanced.
	Advanced bool

	// NewPhase is the phase after completion.
	NewPhase int

	// NewFlame is the flame strength after completion.
	NewFlame int

	// XPEarned is the XP granted (0 on re-completion).
	XPEarned int

	// AlreadyCompleted is true when the quest was completed before:
	// metadata and timestamp were refreshed, nothing else changed.
	AlreadyCompleted bool

	// CompletedAt is the completion timestamp.
	CompletedAt time.Time

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteQuestHandler handles the CompleteQuestCommand.
type CompleteQuestHandler struct {
	evaluator      *quest.Evaluator
	uowFactory     profile.UnitOfWorkFactory
	pathCache      quest.Cache
	eventPublisher shared.EventPublisher
}

// NewCompleteQuestHandler creates a new CompleteQuestHandler.
// pathCache may be nil; cache invalidation is then skipped.
func NewCompleteQuestHandler(
	evaluator *quest.Evaluator,
	uowFactory profile.UnitOfWorkFactory,
	pathCache quest.Cache,
	eventPublisher shared.EventPublisher,
) *CompleteQuestHandler {
	return &CompleteQuestHandler{
		evaluator:      evaluator,
		uowFactory:     uowFactory,
		pathCache:      pathCache,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the complete quest command.
//
// An unknown quest key returns shared.ErrQuestNotFound rather than silently
// succeeding, so callers can distinguish a typo from a real completion.
func (h *CompleteQuestHandler) Handle(ctx context.Context, cmd CompleteQuestCommand) (*CompleteQuestResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_quest: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	questKey, err := shared.NewQuestKey(cmd.QuestKey)
	if err != nil {
		return nil, err
	}

	def, err := h.evaluator.Catalog().Get(questKey)
	if err != nil {
		return nil, err
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	// All four effects happen inside one transaction. The profile row is
	// locked first so concurrent completions by the same user serialize.
	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("complete_quest: begin transaction: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	prof, err := uow.Profiles().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("complete_quest: load profile: %w", err)
	}

	// Effect 1: upsert the completion record, idempotent on (user, questKey).
	rec, err := uow.Quests().GetForUpdate(ctx, userID, questKey)
	switch {
	case err == nil:
		// Existing record; Complete reports whether this is a repeat.
	case errors.Is(err, shared.ErrNotFound):
		rec = quest.NewRecord(userID, def)
	default:
		return nil, fmt.Errorf("complete_quest: load record: %w", err)
	}

	repeat := rec.Complete(timestamp, cmd.Metadata)
	if err := uow.Quests().Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("complete_quest: save record: %w", err)
	}

	result := &CompleteQuestResult{
		UserID:           cmd.UserID,
		QuestKey:         cmd.QuestKey,
		AlreadyCompleted: repeat,
		CompletedAt:      timestamp,
		Events:           make([]shared.Event, 0, 3),
	}

	if repeat {
		// Re-completion refreshes the record only: no XP, no flame, no
		// advancement. Commit just the record update.
		result.NewPhase = prof.PhoenixPhase.Int()
		result.NewFlame = prof.FlameStrength.Int()

		if err := uow.Commit(ctx); err != nil {
			return nil, fmt.Errorf("complete_quest: commit: %w", err)
		}

		event := shared.NewQuestCompletedEvent(cmd.UserID, cmd.QuestKey, def.Phase.Int(), 0, result.NewFlame).AsRepeat()
		h.publish(result, event)
		h.invalidateCache(ctx, userID)
		return result, nil
	}

	// Effects 2+3: flame update and advancement check. The completed-in-phase
	// count is taken inside the transaction, after the upsert, so it includes
	// the quest just completed.
	completedInPhase, err := uow.Quests().CountCompletedInPhase(ctx, userID, prof.PhoenixPhase)
	if err != nil {
		return nil, fmt.Errorf("complete_quest: count completed: %w", err)
	}

	oldPhase := prof.PhoenixPhase
	eval := h.evaluator.EvaluateCompletion(def, prof.PhoenixPhase, prof.FlameStrength, completedInPhase)

	if err := prof.ApplyProgression(eval.NewPhase, eval.NewFlame); err != nil {
		return nil, fmt.Errorf("complete_quest: apply progression: %w", err)
	}
	if err := uow.Profiles().Update(ctx, prof); err != nil {
		return nil, fmt.Errorf("complete_quest: save profile: %w", err)
	}

	// Effect 4: incremental XP aggregate.
	progress, err := uow.Progress().AddXP(ctx, userID, eval.XPEarned)
	if err != nil {
		return nil, fmt.Errorf("complete_quest: add xp: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("complete_quest: commit: %w", err)
	}

	result.Advanced = eval.Advanced
	result.NewPhase = eval.NewPhase.Int()
	result.NewFlame = eval.NewFlame.Int()
	result.XPEarned = eval.XPEarned

	completedEvent := shared.NewQuestCompletedEvent(cmd.UserID, cmd.QuestKey, def.Phase.Int(), eval.XPEarned, result.NewFlame)
	h.publish(result, completedEvent)

	xpEvent := shared.NewXPGainedEvent(cmd.UserID, eval.XPEarned, progress.TotalXP.Int(), cmd.QuestKey)
	h.publish(result, xpEvent)

	if eval.Advanced {
		advancedEvent := shared.NewPhaseAdvancedEvent(cmd.UserID, oldPhase.Int(), eval.NewPhase.Int(), cmd.QuestKey)
		h.publish(result, advancedEvent)
	}

	h.invalidateCache(ctx, userID)

	return result, nil
}

// publish appends the event to the result and sends it to subscribers.
func (h *CompleteQuestHandler) publish(result *CompleteQuestResult, event shared.Event) {
	result.Events = append(result.Events, event)
	if h.eventPublisher != nil {
		_ = h.eventPublisher.Publish(event)
	}
}

// invalidateCache drops the cached status map after a write.
func (h *CompleteQuestHandler) invalidateCache(ctx context.Context, userID shared.UserID) {
	if h.pathCache != nil {
		_ = h.pathCache.Invalidate(ctx, userID)
	}
}

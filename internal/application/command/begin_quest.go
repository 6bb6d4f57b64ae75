package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BEGIN QUEST COMMAND
// Marks a quest as started. Starting is only allowed when the quest is
// effectively available: its phase must not exceed the user's current phase.
// ══════════════════════════════════════════════════════════════════════════════

// BeginQuestCommand contains the data to start a quest.
type BeginQuestCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// QuestKey is the catalog key of the quest being started.
	QuestKey string
}

// Validate validates the command.
func (c BeginQuestCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("begin_quest: user_id is required")
	}
	if c.QuestKey == "" {
		return errors.New("begin_quest: quest_key is required")
	}
	return nil
}

// BeginQuestResult contains the result of starting a quest.
type BeginQuestResult struct {
	// UserID is the internal ID of the user.
	UserID string

	// QuestKey is the started quest.
	QuestKey string

	// Status is the resulting persisted status.
	Status string
}

// BeginQuestHandler handles the BeginQuestCommand.
type BeginQuestHandler struct {
	evaluator      *quest.Evaluator
	profileRepo    profile.Repository
	questRepo      quest.Repository
	pathCache      quest.Cache
	eventPublisher shared.EventPublisher
}

// NewBeginQuestHandler creates a new BeginQuestHandler.
func NewBeginQuestHandler(
	evaluator *quest.Evaluator,
	profileRepo profile.Repository,
	questRepo quest.Repository,
	pathCache quest.Cache,
	eventPublisher shared.EventPublisher,
) *BeginQuestHandler {
	return &BeginQuestHandler{
		evaluator:      evaluator,
		profileRepo:    profileRepo,
		questRepo:      questRepo,
		pathCache:      pathCache,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the begin quest command.
func (h *BeginQuestHandler) Handle(ctx context.Context, cmd BeginQuestCommand) (*BeginQuestResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("begin_quest: validation failed: %w", err)
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

	prof, err := h.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("begin_quest: load profile: %w", err)
	}

	// A quest from a future phase is locked regardless of persisted state.
	if def.Phase > prof.PhoenixPhase {
		return nil, shared.ErrQuestLocked
	}

	rec, err := h.questRepo.Get(ctx, userID, questKey)
	switch {
	case err == nil:
		if err := rec.Begin(); err != nil {
			return nil, err
		}
	case errors.Is(err, shared.ErrNotFound):
		rec = quest.NewRecord(userID, def)
	default:
		return nil, fmt.Errorf("begin_quest: load record: %w", err)
	}

	if err := h.questRepo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("begin_quest: save record: %w", err)
	}

	if h.pathCache != nil {
		_ = h.pathCache.Invalidate(ctx, userID)
	}
	if h.eventPublisher != nil {
		_ = h.eventPublisher.Publish(shared.NewQuestBegunEvent(cmd.UserID, cmd.QuestKey, def.Phase.Int()))
	}

	return &BeginQuestResult{
		UserID:   cmd.UserID,
		QuestKey: cmd.QuestKey,
		Status:   string(rec.Status),
	}, nil
}

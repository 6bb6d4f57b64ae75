// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
	"github.com/phoenixpath/phoenix-recovery-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON QUEST COMPLETED HANDLER
// Обрабатывает событие выполнения квеста.
//
// Ключевые функции:
// 1. Инвалидация кеша карты пути - следующий запрос увидит новый статус
// 2. Структурированный лог о прогрессе для аналитики
// ═══════════════════════════════════════════════════════════════════════════

// OnQuestCompletedHandler обрабатывает событие выполнения квеста.
type OnQuestCompletedHandler struct {
	pathCache quest.Cache
	logger    *logger.Logger
}

// NewOnQuestCompletedHandler создаёт новый обработчик.
// pathCache может быть nil - инвалидация тогда пропускается.
func NewOnQuestCompletedHandler(pathCache quest.Cache, log *logger.Logger) *OnQuestCompletedHandler {
	if log == nil {
		log = logger.Default()
	}

	return &OnQuestCompletedHandler{
		pathCache: pathCache,
		logger:    log.With(logger.Component("on_quest_completed")),
	}
}

// Handle обрабатывает событие. Сигнатура совместима с shared.EventHandler.
func (h *OnQuestCompletedHandler) Handle(event shared.Event) error {
	completed, ok := event.(shared.QuestCompletedEvent)
	if !ok {
		h.logger.Warn("received unexpected event",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	if h.pathCache != nil {
		_ = h.pathCache.Invalidate(context.Background(), shared.UserID(completed.UserID))
	}

	if completed.Repeat {
		h.logger.Debug("quest re-completed",
			logger.UserID(completed.UserID),
			logger.QuestKey(completed.QuestKey),
		)
		return nil
	}

	h.logger.Info("quest completed",
		logger.UserID(completed.UserID),
		logger.QuestKey(completed.QuestKey),
		logger.Phase(completed.Phase),
		logger.XPAmount(completed.XPEarned),
		logger.Flame(completed.NewFlame),
	)

	return nil
}

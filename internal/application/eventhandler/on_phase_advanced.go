package eventhandler

import (
	"context"
	"fmt"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
	"github.com/phoenixpath/phoenix-recovery-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PHASE ADVANCED HANDLER
// Обрабатывает продвижение по Phoenix Path - редкое и важное событие.
//
// Ключевые функции:
// 1. Празднование: лог с полным контекстом перехода
// 2. Принудительная регенерация рекомендации - совет прошлой фазы устарел
// ═══════════════════════════════════════════════════════════════════════════

// RecommendationRefresher принудительно обновляет рекомендацию пользователя.
// Реализуется application-слоем (команда генерации с Force=true).
type RecommendationRefresher interface {
	Refresh(ctx context.Context, userID shared.UserID) error
}

// OnPhaseAdvancedHandler обрабатывает событие смены фазы.
type OnPhaseAdvancedHandler struct {
	refresher RecommendationRefresher
	logger    *logger.Logger
}

// NewOnPhaseAdvancedHandler создаёт новый обработчик.
// refresher может быть nil - регенерация тогда пропускается.
func NewOnPhaseAdvancedHandler(refresher RecommendationRefresher, log *logger.Logger) *OnPhaseAdvancedHandler {
	if log == nil {
		log = logger.Default()
	}

	return &OnPhaseAdvancedHandler{
		refresher: refresher,
		logger:    log.With(logger.Component("on_phase_advanced")),
	}
}

// Handle обрабатывает событие. Сигнатура совместима с shared.EventHandler.
func (h *OnPhaseAdvancedHandler) Handle(event shared.Event) error {
	advanced, ok := event.(shared.PhaseAdvancedEvent)
	if !ok {
		h.logger.Warn("received unexpected event",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	h.logger.Info("phoenix phase advanced",
		logger.UserID(advanced.UserID),
		logger.Int("old_phase", advanced.OldPhase),
		logger.Int("new_phase", advanced.NewPhase),
		logger.QuestKey(advanced.TriggerQuest),
		logger.String("new_phase_title", shared.Phase(advanced.NewPhase).Title()),
	)

	if h.refresher != nil {
		if err := h.refresher.Refresh(context.Background(), shared.UserID(advanced.UserID)); err != nil {
			// Не фатально: дневной endpoint перегенерирует сам.
			return fmt.Errorf("on_phase_advanced: refresh recommendation: %w", err)
		}
	}

	return nil
}

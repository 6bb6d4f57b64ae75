package eventhandler

import (
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
	"github.com/phoenixpath/phoenix-recovery-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROFILE LAPSED HANDLER
// Обрабатывает сигнал воркера о пользователе без чек-инов дольше порога.
// Восстановление - не спринт: событие логируется для последующей мягкой
// реактивации, без давления на пользователя.
// ═══════════════════════════════════════════════════════════════════════════

// OnProfileLapsedHandler обрабатывает событие неактивности.
type OnProfileLapsedHandler struct {
	logger *logger.Logger
}

// NewOnProfileLapsedHandler создаёт новый обработчик.
func NewOnProfileLapsedHandler(log *logger.Logger) *OnProfileLapsedHandler {
	if log == nil {
		log = logger.Default()
	}

	return &OnProfileLapsedHandler{
		logger: log.With(logger.Component("on_profile_lapsed")),
	}
}

// Handle обрабатывает событие. Сигнатура совместима с shared.EventHandler.
func (h *OnProfileLapsedHandler) Handle(event shared.Event) error {
	lapsed, ok := event.(shared.ProfileLapsedEvent)
	if !ok {
		h.logger.Warn("received unexpected event",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	h.logger.Warn("profile lapsed",
		logger.UserID(lapsed.UserID),
		logger.Int("days_inactive", lapsed.DaysInactive),
		logger.Time("last_check_in_at", lapsed.LastCheckInAt),
	)

	return nil
}

package query

import (
	"context"
	"errors"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/checkin"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CHECK-IN HISTORY QUERY
// История чек-инов за период плюс текущая серия. Используется экраном
// дневника и графиками самочувствия.
// ══════════════════════════════════════════════════════════════════════════════

// GetCheckInHistoryQuery содержит параметры запроса истории чек-инов.
type GetCheckInHistoryQuery struct {
	// UserID - внутренний ID пользователя.
	UserID string

	// Days - за сколько дней вернуть чек-ины (по умолчанию 30, не больше 365).
	Days int
}

// Validate проверяет корректность параметров.
func (q *GetCheckInHistoryQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_checkin_history: user_id is required")
	}
	if q.Days <= 0 {
		q.Days = 30
	}
	if q.Days > 365 {
		q.Days = 365
	}
	return nil
}

// CheckInDTO - представление одного чек-ина.
type CheckInDTO struct {
	// Date - день чек-ина (YYYY-MM-DD).
	Date string `json:"date"`

	// Mood - настроение (1-5).
	Mood int `json:"mood"`

	// Energy - энергия (1-5).
	Energy int `json:"energy"`

	// Pain - боль (0-10).
	Pain int `json:"pain"`

	// SleepHours - сон за прошлую ночь в часах.
	SleepHours float64 `json:"sleep_hours"`

	// Note - свободная заметка.
	Note string `json:"note,omitempty"`
}

// GetCheckInHistoryResult содержит результат запроса.
type GetCheckInHistoryResult struct {
	// UserID - ID пользователя.
	UserID string `json:"user_id"`

	// Items - чек-ины, новые первыми.
	Items []CheckInDTO `json:"items"`

	// CurrentStreak - текущая серия.
	CurrentStreak int `json:"current_streak"`

	// BestStreak - лучшая серия.
	BestStreak int `json:"best_streak"`

	// Summary - усреднённое самочувствие за период.
	Summary WeekSummaryDTO `json:"summary"`
}

// GetCheckInHistoryHandler обрабатывает запросы истории чек-инов.
type GetCheckInHistoryHandler struct {
	checkinRepo checkin.Repository
}

// NewGetCheckInHistoryHandler создаёт новый обработчик.
func NewGetCheckInHistoryHandler(checkinRepo checkin.Repository) *GetCheckInHistoryHandler {
	return &GetCheckInHistoryHandler{checkinRepo: checkinRepo}
}

// Handle выполняет запрос.
func (h *GetCheckInHistoryHandler) Handle(ctx context.Context, query GetCheckInHistoryQuery) (*GetCheckInHistoryResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetCheckInHistory", shared.ErrValidation, err.Error(), err)
	}

	userID, err := shared.NewUserID(query.UserID)
	if err != nil {
		return nil, err
	}

	items, err := h.checkinRepo.ListRecent(ctx, userID, query.Days)
	if err != nil {
		return nil, shared.WrapError("query", "GetCheckInHistory", shared.ErrInternal, "failed to load check-ins", err)
	}

	streak, err := h.checkinRepo.GetStreak(ctx, userID)
	if err != nil {
		streak = checkin.NewStreak(userID)
	}

	summary := checkin.Summarize(userID, items)

	result := &GetCheckInHistoryResult{
		UserID:        query.UserID,
		Items:         make([]CheckInDTO, 0, len(items)),
		CurrentStreak: streak.CurrentStreak,
		BestStreak:    streak.BestStreak,
		Summary: WeekSummaryDTO{
			DaysReported: summary.DaysReported,
			AvgMood:      summary.AvgMood,
			AvgEnergy:    summary.AvgEnergy,
			AvgPain:      summary.AvgPain,
			AvgSleep:     summary.AvgSleep,
		},
	}

	for _, c := range items {
		result.Items = append(result.Items, CheckInDTO{
			Date:       c.DayKey(),
			Mood:       int(c.Mood),
			Energy:     int(c.Energy),
			Pain:       int(c.Pain),
			SleepHours: c.SleepHours,
			Note:       c.Note,
		})
	}

	return result, nil
}

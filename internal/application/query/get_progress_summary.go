package query

import (
	"context"
	"fmt"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/checkin"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS SUMMARY QUERY
// Сводка восстановления для домашнего экрана: фаза, пламя, XP, уровень,
// серия чек-инов и усреднённое самочувствие за неделю.
//
// Философия: "Маленькие шаги каждый день - большой путь".
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressSummaryQuery содержит параметры запроса сводки.
type GetProgressSummaryQuery struct {
	// UserID - внутренний ID пользователя.
	UserID string

	// IncludeWeek - включить недельную сводку чек-инов.
	IncludeWeek bool

	// HistoryDays - за сколько дней собирать чек-ины (по умолчанию 7).
	HistoryDays int
}

// Validate проверяет корректность параметров.
func (q *GetProgressSummaryQuery) Validate() error {
	if q.UserID == "" {
		return fmt.Errorf("get_progress_summary: user_id is required")
	}
	if q.HistoryDays <= 0 {
		q.HistoryDays = 7
	}
	if q.HistoryDays > 30 {
		q.HistoryDays = 30
	}
	return nil
}

// WeekSummaryDTO - усреднённое самочувствие за период.
type WeekSummaryDTO struct {
	// DaysReported - за сколько дней есть чек-ины.
	DaysReported int `json:"days_reported"`

	// AvgMood - средняя оценка настроения (1-5).
	AvgMood float64 `json:"avg_mood"`

	// AvgEnergy - средняя оценка энергии (1-5).
	AvgEnergy float64 `json:"avg_energy"`

	// AvgPain - средняя оценка боли (0-10).
	AvgPain float64 `json:"avg_pain"`

	// AvgSleep - средняя длительность сна в часах.
	AvgSleep float64 `json:"avg_sleep"`
}

// GetProgressSummaryResult содержит результат запроса.
type GetProgressSummaryResult struct {
	// UserID - ID пользователя.
	UserID string `json:"user_id"`

	// DisplayName - отображаемое имя.
	DisplayName string `json:"display_name"`

	// Phase - текущая фаза Phoenix Path.
	Phase int `json:"phase"`

	// PhaseTitle - название фазы.
	PhaseTitle string `json:"phase_title"`

	// FlameStrength - сила пламени (0-100).
	FlameStrength int `json:"flame_strength"`

	// TotalXP - суммарный XP.
	TotalXP int `json:"total_xp"`

	// Level - уровень из XP.
	Level int `json:"level"`

	// QuestsCompleted - всего выполнено квестов.
	QuestsCompleted int `json:"quests_completed"`

	// CompletedInPhase - выполнено квестов текущей фазы.
	CompletedInPhase int `json:"completed_in_phase"`

	// AdvanceThreshold - сколько выполнений нужно для продвижения.
	AdvanceThreshold int `json:"advance_threshold"`

	// CurrentStreak - текущая серия чек-инов.
	CurrentStreak int `json:"current_streak"`

	// BestStreak - лучшая серия.
	BestStreak int `json:"best_streak"`

	// Week - недельная сводка (если запрошена).
	Week *WeekSummaryDTO `json:"week,omitempty"`

	// MotivationalMessage - мотивационное сообщение.
	MotivationalMessage string `json:"motivational_message,omitempty"`

	// GeneratedAt - время генерации.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetProgressSummaryHandler обрабатывает запросы сводки.
type GetProgressSummaryHandler struct {
	evaluator    *quest.Evaluator
	profileRepo  profile.Repository
	progressRepo profile.ProgressRepository
	questRepo    quest.Repository
	checkinRepo  checkin.Repository
}

// NewGetProgressSummaryHandler создаёт новый обработчик.
func NewGetProgressSummaryHandler(
	evaluator *quest.Evaluator,
	profileRepo profile.Repository,
	progressRepo profile.ProgressRepository,
	questRepo quest.Repository,
	checkinRepo checkin.Repository,
) *GetProgressSummaryHandler {
	return &GetProgressSummaryHandler{
		evaluator:    evaluator,
		profileRepo:  profileRepo,
		progressRepo: progressRepo,
		questRepo:    questRepo,
		checkinRepo:  checkinRepo,
	}
}

// Handle выполняет запрос.
func (h *GetProgressSummaryHandler) Handle(ctx context.Context, query GetProgressSummaryQuery) (*GetProgressSummaryResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetProgressSummary", shared.ErrValidation, err.Error(), err)
	}

	userID, err := shared.NewUserID(query.UserID)
	if err != nil {
		return nil, err
	}

	prof, err := h.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, shared.WrapError("query", "GetProgressSummary", shared.ErrNotFound, "profile not found", err)
	}

	progress, err := h.progressRepo.Get(ctx, userID)
	if err != nil {
		return nil, shared.WrapError("query", "GetProgressSummary", shared.ErrInternal, "failed to load progress", err)
	}

	completedInPhase, err := h.questRepo.CountCompletedInPhase(ctx, userID, prof.PhoenixPhase)
	if err != nil {
		return nil, shared.WrapError("query", "GetProgressSummary", shared.ErrInternal, "failed to count quests", err)
	}

	streak, err := h.checkinRepo.GetStreak(ctx, userID)
	if err != nil {
		streak = checkin.NewStreak(userID)
	}

	result := &GetProgressSummaryResult{
		UserID:           query.UserID,
		DisplayName:      prof.DisplayName,
		Phase:            prof.PhoenixPhase.Int(),
		PhaseTitle:       prof.PhoenixPhase.Title(),
		FlameStrength:    prof.FlameStrength.Int(),
		TotalXP:          progress.TotalXP.Int(),
		Level:            progress.Level().Int(),
		QuestsCompleted:  progress.QuestsCompleted,
		CompletedInPhase: completedInPhase,
		AdvanceThreshold: h.evaluator.Catalog().AdvanceThreshold(prof.PhoenixPhase),
		CurrentStreak:    streak.CurrentStreak,
		BestStreak:       streak.BestStreak,
		GeneratedAt:      time.Now().UTC(),
	}

	if query.IncludeWeek {
		result.Week = h.buildWeek(ctx, userID, query.HistoryDays)
	}

	result.MotivationalMessage = buildMotivationalMessage(result)

	return result, nil
}

// buildWeek собирает недельную сводку чек-инов. Ошибки чтения не фатальны.
func (h *GetProgressSummaryHandler) buildWeek(ctx context.Context, userID shared.UserID, days int) *WeekSummaryDTO {
	history, err := h.checkinRepo.ListRecent(ctx, userID, days)
	if err != nil {
		return nil
	}

	summary := checkin.Summarize(userID, history)
	return &WeekSummaryDTO{
		DaysReported: summary.DaysReported,
		AvgMood:      summary.AvgMood,
		AvgEnergy:    summary.AvgEnergy,
		AvgPain:      summary.AvgPain,
		AvgSleep:     summary.AvgSleep,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

// buildMotivationalMessage подбирает сообщение по состоянию прогресса.
func buildMotivationalMessage(r *GetProgressSummaryResult) string {
	remaining := r.AdvanceThreshold - r.CompletedInPhase

	flameReady := r.FlameStrength >= shared.FlameAdvanceThreshold.Int()

	switch {
	case r.Phase == shared.MaxPhase.Int() && flameReady:
		return "🕊 Фаза Полёта. Ты прошёл весь путь - теперь держи высоту."
	case remaining == 1 && flameReady:
		return "🔥 Остался один квест до новой фазы!"
	case remaining <= 0 && !flameReady:
		return fmt.Sprintf("⚡ Квесты фазы собраны. Разожги пламя до %d, чтобы подняться.", shared.FlameAdvanceThreshold.Int())
	case r.CurrentStreak >= 7:
		return fmt.Sprintf("🔥 Серия %d дней! Стабильность лечит.", r.CurrentStreak)
	case r.CurrentStreak == 0:
		return "🌱 Начни с чек-ина. Одна минута - и день уже не потерян."
	default:
		return "💪 Каждый выполненный квест делает пламя сильнее."
	}
}

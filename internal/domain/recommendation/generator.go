package recommendation

import (
	"context"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATOR (внешняя стратегия)
// LLM-генерация спрятана за узким интерфейсом; статический fallback -
// реализация по умолчанию, пригодная для тестов без сети.
// ══════════════════════════════════════════════════════════════════════════════

// PromptContext - всё, что генератор знает о пользователе.
// Собирается application-слоем из профиля, прогресса и чек-инов.
type PromptContext struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// DisplayName - имя для обращения.
	DisplayName string

	// InjuryType - тип травмы.
	InjuryType string

	// RecoveryGoals - цели восстановления.
	RecoveryGoals []string

	// DailyGoalMinutes - дневная цель в минутах.
	DailyGoalMinutes int

	// Phase - текущая фаза Phoenix Path.
	Phase shared.Phase

	// Level - уровень из суммарного XP.
	Level shared.Level

	// TotalXP - суммарный XP.
	TotalXP shared.XP

	// Streak - текущая серия чек-инов.
	Streak int

	// WeekCheckIns - чек-ины за последние 7 дней (от старых к новым).
	WeekCheckIns []DaySnapshot

	// Today - сегодняшний чек-ин, если есть.
	Today *DaySnapshot
}

// DaySnapshot - компактное представление одного чек-ина для промпта.
type DaySnapshot struct {
	Date       string  `json:"date"` // YYYY-MM-DD
	Mood       int     `json:"mood"`
	Energy     int     `json:"energy"`
	Pain       int     `json:"pain"`
	SleepHours float64 `json:"sleep_hours"`
	Note       string  `json:"note,omitempty"`
}

// Generator порождает одну рекомендацию по контексту пользователя.
type Generator interface {
	// Generate возвращает рекомендацию для пользователя на указанный день.
	// Реализации обязаны укладываться в таймаут контекста.
	Generate(ctx context.Context, prompt PromptContext, day time.Time) (*Recommendation, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATIC FALLBACK
// ══════════════════════════════════════════════════════════════════════════════

// FallbackGenerator - статический генератор, используемый при недоступности
// LLM и в тестах. Никогда не возвращает ошибку.
type FallbackGenerator struct{}

// NewFallbackGenerator создаёт fallback-генератор.
func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{}
}

// fallbackByPhase - дефолтные рекомендации по фазам.
// Ранние фазы получают мягкие практики, поздние - более требовательные.
var fallbackByPhase = map[shared.Phase]Payload{
	1: {
		Module:   ModuleBreathing,
		Exercise: "Дыхание 4-7-8",
		Duration: 5,
		Reason:   "Мягкая дыхательная практика безопасна в любой день восстановления.",
		Message:  "Каждый спокойный вдох - это шаг. Сегодня достаточно пяти минут.",
		Insight:  "Регулярное дыхание снижает нагрузку на нервную систему после травмы.",
	},
	2: {
		Module:   ModuleMind,
		Exercise: "Карты памяти",
		Duration: 10,
		Reason:   "Короткая когнитивная разминка поддерживает восстановление концентрации.",
		Message:  "Искра уже есть. Десять минут внимания - и она станет ярче.",
		Insight:  "Короткие регулярные сессии эффективнее редких длинных.",
	},
	3: {
		Module:   ModuleColdExposure,
		Exercise: "Прохладное умывание",
		Duration: 3,
		Reason:   "Дозированный холод тренирует сосудистый тонус на стабильной фазе.",
		Message:  "Пламя окрепло. Немного бодрости утром закрепит прогресс.",
		Insight:  "Холодовые практики вводятся постепенно, начиная с коротких контактов.",
	},
	4: {
		Module:   ModuleGratitude,
		Exercise: "Письмо благодарности",
		Duration: 15,
		Reason:   "Закрепление устойчивости через осмысление пройденного пути.",
		Message:  "Ты уже в полёте. Оглянись и отметь, как далеко ты поднялся.",
		Insight:  "Практики благодарности устойчиво коррелируют с настроением в чек-инах.",
	},
}

// Generate возвращает статическую рекомендацию, подобранную по фазе.
func (g *FallbackGenerator) Generate(_ context.Context, prompt PromptContext, day time.Time) (*Recommendation, error) {
	phase := prompt.Phase
	if !phase.IsValid() {
		phase = shared.MinPhase
	}

	payload := fallbackByPhase[phase]
	return New(prompt.UserID, day, payload, SourceFallback, "")
}

// FallbackPayload возвращает fallback-payload для фазы без создания сущности.
// Используется HTTP-слоем для тела ответа при деградации.
func FallbackPayload(phase shared.Phase) Payload {
	if !phase.IsValid() {
		phase = shared.MinPhase
	}
	return fallbackByPhase[phase]
}

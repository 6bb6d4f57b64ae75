// Package recommendation содержит доменную модель ежедневных рекомендаций.
// Рекомендация - один структурированный совет на (пользователь, дата),
// сгенерированный LLM или статическим fallback-генератором.
package recommendation

import (
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Module определяет модуль приложения, к которому относится рекомендация.
// Закрытый enum: LLM обязан выбрать одно из этих значений.
type Module string

const (
	// ModuleBreathing - дыхательные практики.
	ModuleBreathing Module = "breathing"
	// ModuleMind - когнитивные тренировки.
	ModuleMind Module = "mind"
	// ModuleGratitude - практики благодарности.
	ModuleGratitude Module = "gratitude"
	// ModuleColdExposure - холодовые практики.
	ModuleColdExposure Module = "cold-exposure"
	// ModuleIncog - инкогнитивные упражнения (расслабление без задачи).
	ModuleIncog Module = "incog"
)

// IsValid проверяет, что модуль корректен.
func (m Module) IsValid() bool {
	switch m {
	case ModuleBreathing, ModuleMind, ModuleGratitude, ModuleColdExposure, ModuleIncog:
		return true
	default:
		return false
	}
}

// AllModules возвращает все допустимые модули (для схемы structured output).
func AllModules() []Module {
	return []Module{ModuleBreathing, ModuleMind, ModuleGratitude, ModuleColdExposure, ModuleIncog}
}

// Source определяет источник рекомендации.
type Source string

const (
	// SourceGemini - рекомендация от LLM.
	SourceGemini Source = "gemini"
	// SourceFallback - статическая fallback-рекомендация.
	SourceFallback Source = "fallback"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: RECOMMENDATION
// ══════════════════════════════════════════════════════════════════════════════

// Payload - структурированное содержимое рекомендации.
// Форма совпадает с JSON-ответом эндпоинта (и с fallback-объектом).
type Payload struct {
	// Module - выбранный модуль из закрытого enum.
	Module Module `json:"module"`

	// Exercise - название упражнения.
	Exercise string `json:"exercise"`

	// Duration - рекомендуемая длительность в минутах.
	Duration int `json:"duration"`

	// Reason - почему выбрано именно это упражнение.
	Reason string `json:"reason"`

	// Message - поддерживающее сообщение пользователю.
	Message string `json:"message"`

	// Insight - наблюдение по данным чек-инов.
	Insight string `json:"insight"`
}

// Validate проверяет корректность payload.
func (p Payload) Validate() error {
	if !p.Module.IsValid() {
		return shared.ErrInvalidModule
	}
	if p.Exercise == "" {
		return shared.NewDomainError("recommendation", "Validate", shared.ErrEmptyValue, "exercise is required")
	}
	if p.Duration <= 0 {
		return shared.NewDomainError("recommendation", "Validate", shared.ErrValueOutOfRange, "duration must be positive")
	}
	return nil
}

// Recommendation - персистентная рекомендация на (пользователь, дата).
type Recommendation struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// Date - день рекомендации (полночь UTC).
	Date time.Time

	// Payload - содержимое рекомендации.
	Payload Payload

	// Source - источник (gemini или fallback).
	Source Source

	// Model - идентификатор модели, сгенерировавшей рекомендацию (если LLM).
	Model string

	// CreatedAt - время создания.
	CreatedAt time.Time
}

// New создаёт рекомендацию с валидацией payload.
func New(userID shared.UserID, day time.Time, payload Payload, source Source, model string) (*Recommendation, error) {
	if userID.IsEmpty() {
		return nil, shared.NewDomainError("recommendation", "New", shared.ErrEmptyValue, "user ID is required")
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	day = day.UTC()
	return &Recommendation{
		UserID:    userID,
		Date:      time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		Payload:   payload,
		Source:    source,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DayKey возвращает канонический ключ дня YYYY-MM-DD.
func (r *Recommendation) DayKey() string {
	return shared.DayKey(r.Date)
}

// IsFallback возвращает true для статической fallback-рекомендации.
func (r *Recommendation) IsFallback() bool {
	return r.Source == SourceFallback
}

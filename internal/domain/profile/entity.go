// Package profile содержит доменную модель пользователя приложения восстановления.
// Профиль хранит учётные данные и состояние прогрессии Phoenix Path.
package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Profile - центральная сущность системы, представляющая пользователя.
type Profile struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID shared.UserID

	// Email - адрес электронной почты (нормализованный, уникальный).
	Email shared.Email

	// PasswordHash - bcrypt-хеш пароля. Никогда не покидает backend.
	PasswordHash string

	// DisplayName - отображаемое имя.
	DisplayName string

	// InjuryType - тип травмы (свободный текст, используется в рекомендациях).
	InjuryType string

	// RecoveryGoals - цели восстановления, заданные пользователем.
	RecoveryGoals []string

	// DailyGoalMinutes - дневная цель занятий в минутах.
	DailyGoalMinutes int

	// PhoenixPhase - текущая фаза прогрессии (1-4, монотонно неубывающая).
	PhoenixPhase shared.Phase

	// FlameStrength - сила пламени (0-100), сбрасывается при смене фазы.
	FlameStrength shared.FlameStrength

	// LastCheckInAt - время последнего чек-ина (для детекции неактивности).
	LastCheckInAt time.Time

	// CreatedAt - время регистрации.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewProfileParams содержит параметры для создания нового профиля.
type NewProfileParams struct {
	ID               shared.UserID
	Email            shared.Email
	PasswordHash     string
	DisplayName      string
	InjuryType       string
	RecoveryGoals    []string
	DailyGoalMinutes int
}

// NewProfile создаёт новый профиль с валидацией всех полей.
// Новый пользователь начинает с фазы 1 и нулевым пламенем.
func NewProfile(params NewProfileParams) (*Profile, error) {
	if params.ID.IsEmpty() {
		return nil, shared.NewDomainError("profile", "New", shared.ErrEmptyValue, "profile id is required")
	}

	if !params.Email.IsValid() {
		return nil, shared.ErrInvalidEmail
	}

	if params.PasswordHash == "" {
		return nil, shared.NewDomainError("profile", "New", shared.ErrEmptyValue, "password hash is required")
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if len(displayName) == 0 || len(displayName) > 100 {
		return nil, shared.NewDomainError("profile", "New", shared.ErrInvalidInput, "display name must be 1-100 chars")
	}

	dailyGoal := params.DailyGoalMinutes
	if dailyGoal <= 0 {
		dailyGoal = 15 // разумный дефолт для начала восстановления
	}

	now := time.Now().UTC()

	return &Profile{
		ID:               params.ID,
		Email:            params.Email.Normalize(),
		PasswordHash:     params.PasswordHash,
		DisplayName:      displayName,
		InjuryType:       strings.TrimSpace(params.InjuryType),
		RecoveryGoals:    params.RecoveryGoals,
		DailyGoalMinutes: dailyGoal,
		PhoenixPhase:     shared.MinPhase,
		FlameStrength:    shared.MinFlame,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// ApplyProgression применяет результат выполнения квеста к профилю.
// Фаза монотонна: попытка уменьшить её возвращает ошибку.
func (p *Profile) ApplyProgression(newPhase shared.Phase, newFlame shared.FlameStrength) error {
	if newPhase < p.PhoenixPhase {
		return shared.ErrPhaseRegression
	}
	if !newPhase.IsValid() {
		return shared.ErrInvalidPhase
	}
	if !newFlame.IsValid() {
		return shared.ErrInvalidFlame
	}

	p.PhoenixPhase = newPhase
	p.FlameStrength = newFlame
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordCheckIn обновляет время последнего чек-ина.
func (p *Profile) RecordCheckIn(at time.Time) {
	p.LastCheckInAt = at
	p.UpdatedAt = time.Now().UTC()
}

// UpdateGoals обновляет цели восстановления и дневную цель.
func (p *Profile) UpdateGoals(goals []string, dailyGoalMinutes int) error {
	if dailyGoalMinutes <= 0 || dailyGoalMinutes > 24*60 {
		return shared.NewDomainError("profile", "UpdateGoals", shared.ErrValueOutOfRange,
			"daily goal must be between 1 and 1440 minutes")
	}

	p.RecoveryGoals = goals
	p.DailyGoalMinutes = dailyGoalMinutes
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// DaysSinceLastCheckIn возвращает количество дней с последнего чек-ина.
// Возвращает -1, если чек-инов ещё не было.
func (p *Profile) DaysSinceLastCheckIn() int {
	if p.LastCheckInAt.IsZero() {
		return -1
	}
	return int(time.Since(p.LastCheckInAt).Hours() / 24)
}

// IsLapsed возвращает true, если пользователь неактивен дольше порога.
func (p *Profile) IsLapsed(threshold time.Duration) bool {
	if p.LastCheckInAt.IsZero() {
		return time.Since(p.CreatedAt) > threshold
	}
	return time.Since(p.LastCheckInAt) > threshold
}

// String возвращает строковое представление профиля для логирования.
// Email и хеш пароля намеренно не включаются.
func (p *Profile) String() string {
	return fmt.Sprintf(
		"Profile{ID: %s, Phase: %d, Flame: %d}",
		p.ID, p.PhoenixPhase, p.FlameStrength,
	)
}

// Clone создаёт глубокую копию профиля.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}

	clone := *p
	if p.RecoveryGoals != nil {
		clone.RecoveryGoals = make([]string, len(p.RecoveryGoals))
		copy(clone.RecoveryGoals, p.RecoveryGoals)
	}
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress - агрегат суммарного прогресса пользователя.
// totalXp поддерживается инкрементально, без пересчёта с нуля.
type Progress struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// TotalXP - суммарный XP за все выполненные квесты.
	TotalXP shared.XP

	// QuestsCompleted - количество выполненных квестов.
	QuestsCompleted int

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewProgress создаёт пустой агрегат прогресса.
func NewProgress(userID shared.UserID) *Progress {
	return &Progress{
		UserID:    userID,
		TotalXP:   0,
		UpdatedAt: time.Now().UTC(),
	}
}

// AddXP инкрементально добавляет XP за выполненный квест.
func (pr *Progress) AddXP(amount int) {
	pr.TotalXP = pr.TotalXP.Add(amount)
	pr.QuestsCompleted++
	pr.UpdatedAt = time.Now().UTC()
}

// Level возвращает уровень, вычисленный из суммарного XP.
func (pr *Progress) Level() shared.Level {
	return pr.TotalXP.Level()
}

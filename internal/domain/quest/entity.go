// Package quest содержит доменную модель квестов восстановления (Phoenix Path).
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package quest

import (
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет текущий статус квеста для конкретного пользователя.
type Status string

const (
	// StatusLocked - фаза квеста ещё не достигнута.
	StatusLocked Status = "locked"
	// StatusAvailable - квест доступен для выполнения.
	StatusAvailable Status = "available"
	// StatusInProgress - пользователь начал квест (опционально, не все типы).
	StatusInProgress Status = "in_progress"
	// StatusCompleted - квест выполнен. Терминальный статус.
	StatusCompleted Status = "completed"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusLocked, StatusAvailable, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true, если из статуса нет переходов.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// CanBegin возвращает true, если из статуса можно перейти в in_progress.
func (s Status) CanBegin() bool {
	return s == StatusAvailable
}

// CanComplete возвращает true, если из статуса можно перейти в completed.
func (s Status) CanComplete() bool {
	return s == StatusAvailable || s == StatusInProgress
}

// Type представляет категорию квеста. Чисто информационное поле -
// на логику прохождения не влияет.
type Type string

const (
	// TypeNarrative - сюжетный квест (глава истории феникса).
	TypeNarrative Type = "narrative"
	// TypeBreathing - дыхательная практика.
	TypeBreathing Type = "breathing"
	// TypeCognitive - когнитивное упражнение.
	TypeCognitive Type = "cognitive"
	// TypeReflection - рефлексия / дневник.
	TypeReflection Type = "reflection"
	// TypePhysical - лёгкая физическая активность.
	TypePhysical Type = "physical"
	// TypeGratitude - практика благодарности.
	TypeGratitude Type = "gratitude"
)

// IsValid проверяет, что тип корректен.
func (t Type) IsValid() bool {
	switch t {
	case TypeNarrative, TypeBreathing, TypeCognitive, TypeReflection, TypePhysical, TypeGratitude:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// QUEST DEFINITION (статическая запись каталога)
// ══════════════════════════════════════════════════════════════════════════════

// Definition описывает квест в статическом каталоге.
// Каталог неизменяем и загружается при старте процесса.
type Definition struct {
	// Key - уникальный стабильный идентификатор квеста.
	Key shared.QuestKey

	// Phase - фаза прогрессии (1-4), к которой относится квест.
	Phase shared.Phase

	// Type - категория квеста (информационное поле).
	Type Type

	// Title - отображаемое название.
	Title string

	// XPReward - награда в XP за выполнение (неотрицательная).
	XPReward int

	// SymptomTags - теги симптомов, используются только для фильтрации в UI.
	SymptomTags []string
}

// Validate проверяет корректность определения квеста.
func (d Definition) Validate() error {
	if !d.Key.IsValid() {
		return shared.ErrInvalidQuestKey
	}
	if !d.Phase.IsValid() {
		return shared.ErrInvalidPhase
	}
	if !d.Type.IsValid() {
		return shared.NewDomainError("quest", "Validate", shared.ErrInvalidInput, "invalid quest type")
	}
	if d.XPReward < 0 {
		return shared.NewDomainError("quest", "Validate", shared.ErrNegativeValue, "xp reward cannot be negative")
	}
	return nil
}

// FlameGain возвращает прирост силы пламени за выполнение этого квеста.
// Формула: min(ceil(xpReward / 10), 15).
func (d Definition) FlameGain() int {
	gain := (d.XPReward + 9) / 10
	if gain > shared.MaxFlameGainPerQuest {
		return shared.MaxFlameGainPerQuest
	}
	return gain
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER QUEST RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record - персистентная запись о квесте конкретного пользователя.
// Создаётся при первом изменении статуса; отсутствие записи означает,
// что эффективный статус вычисляется из фазы пользователя.
type Record struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// QuestKey - ключ квеста из каталога.
	QuestKey shared.QuestKey

	// Status - персистентный статус. Имеет приоритет над вычисленным.
	Status Status

	// Phase - фаза квеста на момент записи (денормализация для подсчётов).
	Phase shared.Phase

	// XPReward - награда квеста на момент выполнения (денормализация).
	XPReward int

	// CompletedAt - время выполнения. Устанавливается ровно один раз.
	CompletedAt time.Time

	// Metadata - произвольные данные о выполнении (длительность, счёт и т.п.).
	Metadata map[string]interface{}

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewRecord создаёт запись квеста в статусе in_progress.
func NewRecord(userID shared.UserID, def Definition) *Record {
	now := time.Now().UTC()
	return &Record{
		UserID:    userID,
		QuestKey:  def.Key,
		Status:    StatusInProgress,
		Phase:     def.Phase,
		XPReward:  def.XPReward,
		Metadata:  map[string]interface{}{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsCompleted возвращает true, если квест выполнен.
func (r *Record) IsCompleted() bool {
	return r.Status == StatusCompleted
}

// Begin переводит запись в статус in_progress.
func (r *Record) Begin() error {
	if r.Status == StatusCompleted {
		return shared.ErrQuestCompleted
	}
	if r.Status == StatusInProgress {
		return shared.ErrQuestAlreadyBegun
	}

	r.Status = StatusInProgress
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete переводит запись в терминальный статус completed.
// Повторный вызов обновляет метаданные и timestamp, но возвращает
// repeat=true - начисление XP при повторе не выполняется.
func (r *Record) Complete(at time.Time, metadata map[string]interface{}) (repeat bool) {
	repeat = r.Status == StatusCompleted

	r.Status = StatusCompleted
	r.CompletedAt = at
	r.MergeMetadata(metadata)
	r.UpdatedAt = at

	return repeat
}

// MergeMetadata дополняет метаданные записи. Существующие ключи перезаписываются.
func (r *Record) MergeMetadata(metadata map[string]interface{}) {
	if len(metadata) == 0 {
		return
	}
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{}, len(metadata))
	}
	for k, v := range metadata {
		r.Metadata[k] = v
	}
}

// Clone создаёт глубокую копию записи.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	clone := *r
	if r.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

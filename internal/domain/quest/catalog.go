package quest

import (
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUEST CATALOG
// Статическая упорядоченная таблица квестов. Каталог компилируется в бинарник
// и не меняется в рантайме. Инвариант: каждая фаза 1-4 содержит хотя бы один
// квест, все ключи глобально уникальны.
// ══════════════════════════════════════════════════════════════════════════════

// Catalog - неизменяемый набор определений квестов с индексом по ключу.
type Catalog struct {
	definitions []Definition
	byKey       map[shared.QuestKey]Definition
	perPhase    map[shared.Phase]int
}

// NewCatalog создаёт каталог из набора определений с валидацией инвариантов.
func NewCatalog(definitions []Definition) (*Catalog, error) {
	if len(definitions) == 0 {
		return nil, shared.NewDomainError("quest", "NewCatalog", shared.ErrEmptyValue, "catalog cannot be empty")
	}

	byKey := make(map[shared.QuestKey]Definition, len(definitions))
	perPhase := make(map[shared.Phase]int)

	for _, def := range definitions {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, exists := byKey[def.Key]; exists {
			return nil, shared.NewDomainError("quest", "NewCatalog", shared.ErrAlreadyExists,
				"duplicate quest key: "+def.Key.String())
		}
		byKey[def.Key] = def
		perPhase[def.Phase]++
	}

	for phase := shared.MinPhase; phase <= shared.MaxPhase; phase++ {
		if perPhase[phase] == 0 {
			return nil, shared.NewDomainError("quest", "NewCatalog", shared.ErrInvalidEntity,
				"phase has no quests: "+phase.Title())
		}
	}

	defs := make([]Definition, len(definitions))
	copy(defs, definitions)

	return &Catalog{
		definitions: defs,
		byKey:       byKey,
		perPhase:    perPhase,
	}, nil
}

// Get возвращает определение квеста по ключу.
// Возвращает shared.ErrQuestNotFound, если ключ неизвестен.
func (c *Catalog) Get(key shared.QuestKey) (Definition, error) {
	def, ok := c.byKey[key]
	if !ok {
		return Definition{}, shared.ErrQuestNotFound
	}
	return def, nil
}

// Contains проверяет наличие ключа в каталоге.
func (c *Catalog) Contains(key shared.QuestKey) bool {
	_, ok := c.byKey[key]
	return ok
}

// All возвращает все определения в порядке каталога.
func (c *Catalog) All() []Definition {
	defs := make([]Definition, len(c.definitions))
	copy(defs, c.definitions)
	return defs
}

// Size возвращает общее количество квестов.
func (c *Catalog) Size() int {
	return len(c.definitions)
}

// QuestsInPhase возвращает количество квестов в фазе.
func (c *Catalog) QuestsInPhase(phase shared.Phase) int {
	return c.perPhase[phase]
}

// PhaseQuests возвращает определения квестов указанной фазы в порядке каталога.
func (c *Catalog) PhaseQuests(phase shared.Phase) []Definition {
	var defs []Definition
	for _, def := range c.definitions {
		if def.Phase == phase {
			defs = append(defs, def)
		}
	}
	return defs
}

// AdvanceThreshold возвращает порог выполненных квестов для продвижения фазы:
// ceil(0.6 * количество квестов в фазе).
func (c *Catalog) AdvanceThreshold(phase shared.Phase) int {
	total := c.perPhase[phase]
	return (total*6 + 9) / 10
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFAULT CATALOG (Phoenix Path)
// ══════════════════════════════════════════════════════════════════════════════

// DefaultCatalog возвращает стандартный каталог Phoenix Path.
// Фазы: 1 - Пепел, 2 - Искра, 3 - Пламя, 4 - Полёт.
func DefaultCatalog() *Catalog {
	catalog, err := NewCatalog(phoenixQuests())
	if err != nil {
		// Каталог статический; ошибка здесь означает дефект сборки.
		panic(err)
	}
	return catalog
}

func phoenixQuests() []Definition {
	return []Definition{
		// Фаза 1: Пепел - первые шаги после травмы.
		{Key: "awakening-story", Phase: 1, Type: TypeNarrative, Title: "Пробуждение", XPReward: 10,
			SymptomTags: []string{"fatigue"}},
		{Key: "first-breath", Phase: 1, Type: TypeBreathing, Title: "Первый вдох", XPReward: 20,
			SymptomTags: []string{"anxiety", "fatigue"}},
		{Key: "morning-checkin", Phase: 1, Type: TypeReflection, Title: "Утренняя сверка", XPReward: 15,
			SymptomTags: []string{"mood"}},
		{Key: "gentle-walk", Phase: 1, Type: TypePhysical, Title: "Тихая прогулка", XPReward: 25,
			SymptomTags: []string{"dizziness", "fatigue"}},
		{Key: "three-good-things", Phase: 1, Type: TypeGratitude, Title: "Три хорошие вещи", XPReward: 15,
			SymptomTags: []string{"mood"}},

		// Фаза 2: Искра - возвращение концентрации.
		{Key: "ember-story", Phase: 2, Type: TypeNarrative, Title: "Искра в пепле", XPReward: 10,
			SymptomTags: nil},
		{Key: "box-breathing", Phase: 2, Type: TypeBreathing, Title: "Квадратное дыхание", XPReward: 30,
			SymptomTags: []string{"anxiety"}},
		{Key: "memory-cards", Phase: 2, Type: TypeCognitive, Title: "Карты памяти", XPReward: 40,
			SymptomTags: []string{"memory", "focus"}},
		{Key: "attention-garden", Phase: 2, Type: TypeCognitive, Title: "Сад внимания", XPReward: 40,
			SymptomTags: []string{"focus"}},
		{Key: "evening-journal", Phase: 2, Type: TypeReflection, Title: "Вечерний дневник", XPReward: 20,
			SymptomTags: []string{"mood", "sleep"}},

		// Фаза 3: Пламя - наращивание нагрузки.
		{Key: "rising-flame-story", Phase: 3, Type: TypeNarrative, Title: "Восходящее пламя", XPReward: 10,
			SymptomTags: nil},
		{Key: "coherent-breathing", Phase: 3, Type: TypeBreathing, Title: "Когерентное дыхание", XPReward: 35,
			SymptomTags: []string{"anxiety", "sleep"}},
		{Key: "dual-task-trainer", Phase: 3, Type: TypeCognitive, Title: "Двойная задача", XPReward: 60,
			SymptomTags: []string{"focus", "memory"}},
		{Key: "cold-morning", Phase: 3, Type: TypePhysical, Title: "Холодное утро", XPReward: 50,
			SymptomTags: []string{"fatigue"}},
		{Key: "letter-to-self", Phase: 3, Type: TypeReflection, Title: "Письмо себе", XPReward: 30,
			SymptomTags: []string{"mood"}},

		// Фаза 4: Полёт - устойчивая самостоятельность.
		{Key: "flight-story", Phase: 4, Type: TypeNarrative, Title: "Полёт", XPReward: 10,
			SymptomTags: nil},
		{Key: "open-sky-meditation", Phase: 4, Type: TypeBreathing, Title: "Открытое небо", XPReward: 45,
			SymptomTags: []string{"anxiety"}},
		{Key: "strategy-puzzles", Phase: 4, Type: TypeCognitive, Title: "Стратегические головоломки", XPReward: 80,
			SymptomTags: []string{"focus", "memory"}},
		{Key: "mentor-reflection", Phase: 4, Type: TypeReflection, Title: "Взгляд назад", XPReward: 40,
			SymptomTags: nil},
		{Key: "gratitude-letter", Phase: 4, Type: TypeGratitude, Title: "Письмо благодарности", XPReward: 35,
			SymptomTags: []string{"mood"}},
	}
}

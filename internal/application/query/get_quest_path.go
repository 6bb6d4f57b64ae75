// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET QUEST PATH QUERY
// Собирает полную карту Phoenix Path: все квесты каталога со статусами,
// сгруппированные по фазам. Работает в двух режимах:
//   - авторизованный: статусы из записей пользователя + его фаза;
//   - гость: фаза 1 доступна, остальное заперто, ничего не персистится.
// ══════════════════════════════════════════════════════════════════════════════

// GetQuestPathQuery содержит параметры запроса карты пути.
type GetQuestPathQuery struct {
	// UserID - внутренний ID пользователя. Пустой = гостевой режим.
	UserID string

	// SkipCache - игнорировать кеш статусов и читать из хранилища.
	SkipCache bool
}

// QuestDTO - представление одного квеста для клиента.
type QuestDTO struct {
	// Key - ключ квеста из каталога.
	Key string `json:"key"`

	// Phase - фаза, к которой принадлежит квест.
	Phase int `json:"phase"`

	// Type - тип квеста (narrative, breathing, cognitive, ...).
	Type string `json:"type"`

	// Title - название квеста.
	Title string `json:"title"`

	// XPReward - награда за выполнение.
	XPReward int `json:"xp_reward"`

	// FlameGain - прирост пламени за выполнение.
	FlameGain int `json:"flame_gain"`

	// Status - эффективный статус (locked, available, in_progress, completed).
	Status string `json:"status"`
}

// PhaseDTO - представление одной фазы пути.
type PhaseDTO struct {
	// Phase - номер фазы (1-4).
	Phase int `json:"phase"`

	// Title - название фазы.
	Title string `json:"title"`

	// Quests - квесты фазы в порядке каталога.
	Quests []QuestDTO `json:"quests"`

	// CompletedCount - сколько квестов фазы выполнено.
	CompletedCount int `json:"completed_count"`

	// TotalCount - всего квестов в фазе.
	TotalCount int `json:"total_count"`

	// AdvanceThreshold - сколько выполнений нужно для продвижения.
	AdvanceThreshold int `json:"advance_threshold"`
}

// GetQuestPathResult содержит результат запроса.
type GetQuestPathResult struct {
	// Phases - фазы пути по порядку.
	Phases []PhaseDTO `json:"phases"`

	// UserPhase - текущая фаза пользователя (1 для гостя).
	UserPhase int `json:"user_phase"`

	// FlameStrength - сила пламени (0 для гостя).
	FlameStrength int `json:"flame_strength"`

	// Guest - гостевой режим.
	Guest bool `json:"guest"`

	// FromCache - статусы взяты из кеша.
	FromCache bool `json:"-"`

	// GeneratedAt - время генерации.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetQuestPathHandler обрабатывает запросы карты пути.
type GetQuestPathHandler struct {
	evaluator   *quest.Evaluator
	questRepo   quest.Repository
	profileRepo profile.Repository
	cache       quest.Cache
	cacheTTL    time.Duration
}

// NewGetQuestPathHandler создаёт новый обработчик.
// cache может быть nil - кеширование тогда отключено.
func NewGetQuestPathHandler(
	evaluator *quest.Evaluator,
	questRepo quest.Repository,
	profileRepo profile.Repository,
	cache quest.Cache,
	cacheTTL time.Duration,
) *GetQuestPathHandler {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &GetQuestPathHandler{
		evaluator:   evaluator,
		questRepo:   questRepo,
		profileRepo: profileRepo,
		cache:       cache,
		cacheTTL:    cacheTTL,
	}
}

// Handle выполняет запрос.
func (h *GetQuestPathHandler) Handle(ctx context.Context, query GetQuestPathQuery) (*GetQuestPathResult, error) {
	if query.UserID == "" {
		return h.handleGuest(), nil
	}
	return h.handleAuthorized(ctx, query)
}

// handleGuest строит карту для неавторизованного пользователя.
func (h *GetQuestPathHandler) handleGuest() *GetQuestPathResult {
	statuses := h.evaluator.GuestStatuses()

	return &GetQuestPathResult{
		Phases:        h.buildPhases(statuses),
		UserPhase:     shared.MinPhase.Int(),
		FlameStrength: shared.MinFlame.Int(),
		Guest:         true,
		GeneratedAt:   time.Now().UTC(),
	}
}

// handleAuthorized строит карту по записям пользователя.
func (h *GetQuestPathHandler) handleAuthorized(ctx context.Context, query GetQuestPathQuery) (*GetQuestPathResult, error) {
	userID, err := shared.NewUserID(query.UserID)
	if err != nil {
		return nil, err
	}

	prof, err := h.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, shared.WrapError("query", "GetQuestPath", shared.ErrNotFound, "profile not found", err)
	}

	statuses, fromCache := h.loadStatuses(ctx, userID, prof.PhoenixPhase, query.SkipCache)

	return &GetQuestPathResult{
		Phases:        h.buildPhases(statuses),
		UserPhase:     prof.PhoenixPhase.Int(),
		FlameStrength: prof.FlameStrength.Int(),
		FromCache:     fromCache,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

// loadStatuses возвращает карту статусов из кеша или вычисляет заново.
func (h *GetQuestPathHandler) loadStatuses(ctx context.Context, userID shared.UserID, phase shared.Phase, skipCache bool) (quest.StatusMap, bool) {
	if h.cache != nil && !skipCache {
		if cached, err := h.cache.GetStatuses(ctx, userID); err == nil {
			return cached, true
		}
	}

	records, err := h.questRepo.ListByUser(ctx, userID)
	if err != nil {
		// Деградация: без записей карта строится только из фазы.
		records = nil
	}

	statuses := h.evaluator.ComputeStatuses(records, phase)

	if h.cache != nil {
		_ = h.cache.SetStatuses(ctx, userID, statuses, h.cacheTTL)
	}

	return statuses, false
}

// buildPhases группирует каталог по фазам и накладывает статусы.
func (h *GetQuestPathHandler) buildPhases(statuses quest.StatusMap) []PhaseDTO {
	catalog := h.evaluator.Catalog()
	phases := make([]PhaseDTO, 0, shared.MaxPhase.Int())

	for p := shared.MinPhase; p <= shared.MaxPhase; p++ {
		defs := catalog.PhaseQuests(p)

		dto := PhaseDTO{
			Phase:            p.Int(),
			Title:            p.Title(),
			Quests:           make([]QuestDTO, 0, len(defs)),
			TotalCount:       len(defs),
			AdvanceThreshold: catalog.AdvanceThreshold(p),
		}

		for _, def := range defs {
			status := statuses.StatusOf(def.Key)
			if status == quest.StatusCompleted {
				dto.CompletedCount++
			}

			dto.Quests = append(dto.Quests, QuestDTO{
				Key:       string(def.Key),
				Phase:     def.Phase.Int(),
				Type:      string(def.Type),
				Title:     def.Title,
				XPReward:  def.XPReward,
				FlameGain: def.FlameGain(),
				Status:    string(status),
			})
		}

		phases = append(phases, dto)
	}

	return phases
}

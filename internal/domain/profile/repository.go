package profile

import (
	"context"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет основные операции CRUD для профилей.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт новый профиль.
	// Возвращает shared.ErrEmailTaken, если email уже занят.
	Create(ctx context.Context, p *Profile) error

	// GetByID возвращает профиль по ID.
	// Возвращает shared.ErrProfileNotFound, если профиль не найден.
	GetByID(ctx context.Context, id shared.UserID) (*Profile, error)

	// GetByIDForUpdate возвращает профиль с блокировкой строки (транзакция).
	// Возвращает shared.ErrProfileNotFound, если профиль не найден.
	GetByIDForUpdate(ctx context.Context, id shared.UserID) (*Profile, error)

	// GetByEmail возвращает профиль по нормализованному email.
	// Возвращает shared.ErrProfileNotFound, если профиль не найден.
	GetByEmail(ctx context.Context, email shared.Email) (*Profile, error)

	// Update обновляет данные профиля.
	// Возвращает shared.ErrProfileNotFound, если профиль не найден.
	Update(ctx context.Context, p *Profile) error

	// Delete удаляет профиль. Используется компенсацией саги онбординга.
	Delete(ctx context.Context, id shared.UserID) error

	// ─────────────────────────────────────────────────────────────────────────
	// Bulk Operations
	// ─────────────────────────────────────────────────────────────────────────

	// ListActive возвращает профили с чек-ином не старше threshold.
	// Используется воркером для пересчёта рекомендаций.
	ListActive(ctx context.Context, threshold time.Duration, opts ListOptions) ([]*Profile, error)

	// FindLapsed находит профили без активности дольше threshold.
	FindLapsed(ctx context.Context, threshold time.Duration) ([]*Profile, error)

	// Count возвращает общее количество профилей.
	Count(ctx context.Context) (int, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Existence Checks
	// ─────────────────────────────────────────────────────────────────────────

	// Exists проверяет существование профиля по ID.
	Exists(ctx context.Context, id shared.UserID) (bool, error)

	// ExistsByEmail проверяет существование профиля по email.
	ExistsByEmail(ctx context.Context, email shared.Email) (bool, error)
}

// ListOptions содержит параметры для пагинации и сортировки.
type ListOptions struct {
	// Offset - смещение (для пагинации).
	Offset int

	// Limit - максимальное количество записей.
	Limit int

	// SortBy - поле для сортировки.
	SortBy string

	// SortDesc - сортировка по убыванию.
	SortDesc bool
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset:   0,
		Limit:    50,
		SortBy:   "created_at",
		SortDesc: true,
	}
}

// WithOffset устанавливает смещение.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit устанавливает лимит.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithSort устанавливает сортировку.
func (o ListOptions) WithSort(field string, desc bool) ListOptions {
	o.SortBy = field
	o.SortDesc = desc
	return o
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository определяет операции над агрегатом прогресса.
type ProgressRepository interface {
	// Get возвращает агрегат прогресса пользователя.
	// Для пользователя без агрегата возвращает пустой Progress, не ошибку.
	Get(ctx context.Context, userID shared.UserID) (*Progress, error)

	// AddXP инкрементально добавляет XP за выполненный квест (upsert
	// агрегата) и возвращает обновлённый агрегат.
	AddXP(ctx context.Context, userID shared.UserID, amount int) (*Progress, error)

	// Seed создаёт пустой агрегат прогресса, если его ещё нет.
	// Существующий агрегат не изменяется.
	Seed(ctx context.Context, userID shared.UserID) error
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION STORE
// Сессии живут в Redis: токен -> userID с TTL.
// ══════════════════════════════════════════════════════════════════════════════

// SessionStore определяет операции над bearer-сессиями.
type SessionStore interface {
	// Create сохраняет сессию с указанным TTL.
	Create(ctx context.Context, token string, userID shared.UserID, ttl time.Duration) error

	// Resolve возвращает userID по токену.
	// Возвращает shared.ErrSessionExpired для неизвестного или истёкшего токена.
	Resolve(ctx context.Context, token string) (shared.UserID, error)

	// Revoke удаляет сессию.
	Revoke(ctx context.Context, token string) error

	// Refresh продлевает TTL сессии.
	Refresh(ctx context.Context, token string, ttl time.Duration) error
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Cache определяет операции кеширования профилей.
type Cache interface {
	// Get получает профиль из кеша.
	Get(ctx context.Context, id shared.UserID) (*Profile, error)

	// Set сохраняет профиль в кеш.
	Set(ctx context.Context, p *Profile, ttl time.Duration) error

	// Invalidate удаляет профиль из кеша.
	Invalidate(ctx context.Context, id shared.UserID) error
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK (для транзакций)
// Четыре эффекта completeQuest применяются как одна транзакция.
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWork представляет единицу работы с транзакционной семантикой.
type UnitOfWork interface {
	// Profiles возвращает репозиторий профилей в рамках транзакции.
	Profiles() Repository

	// Progress возвращает репозиторий прогресса в рамках транзакции.
	Progress() ProgressRepository

	// Quests возвращает репозиторий записей квестов в рамках транзакции.
	Quests() quest.Repository

	// Commit фиксирует транзакцию.
	Commit(ctx context.Context) error

	// Rollback откатывает транзакцию.
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory создаёт единицы работы.
type UnitOfWorkFactory interface {
	// Begin начинает новую транзакцию.
	Begin(ctx context.Context) (UnitOfWork, error)
}

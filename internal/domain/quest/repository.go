package quest

import (
	"context"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над записями квестов пользователя.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Record Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Upsert создаёт или обновляет запись по ключу (user_id, quest_key).
	Upsert(ctx context.Context, record *Record) error

	// Get возвращает запись по паре (user, questKey).
	// Возвращает shared.ErrQuestRecordNotFound, если записи нет.
	Get(ctx context.Context, userID shared.UserID, key shared.QuestKey) (*Record, error)

	// GetForUpdate возвращает запись с блокировкой строки в рамках транзакции.
	// Возвращает shared.ErrQuestRecordNotFound, если записи нет.
	GetForUpdate(ctx context.Context, userID shared.UserID, key shared.QuestKey) (*Record, error)

	// ListByUser возвращает все записи пользователя.
	ListByUser(ctx context.Context, userID shared.UserID) ([]*Record, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Counters
	// ─────────────────────────────────────────────────────────────────────────

	// CountCompletedInPhase возвращает количество выполненных квестов
	// пользователя в указанной фазе.
	CountCompletedInPhase(ctx context.Context, userID shared.UserID, phase shared.Phase) (int, error)

	// CountCompleted возвращает общее количество выполненных квестов.
	CountCompleted(ctx context.Context, userID shared.UserID) (int, error)

	// ─────────────────────────────────────────────────────────────────────────
	// History
	// ─────────────────────────────────────────────────────────────────────────

	// ListCompletedSince возвращает записи, выполненные после указанного времени.
	ListCompletedSince(ctx context.Context, userID shared.UserID, since time.Time) ([]*Record, error)
}

// Cache определяет операции кеширования вычисленных карт статусов.
type Cache interface {
	// GetStatuses получает карту статусов пользователя из кеша.
	GetStatuses(ctx context.Context, userID shared.UserID) (StatusMap, error)

	// SetStatuses сохраняет карту статусов в кеш.
	SetStatuses(ctx context.Context, userID shared.UserID, statuses StatusMap, ttl time.Duration) error

	// Invalidate удаляет карту статусов пользователя из кеша.
	Invalidate(ctx context.Context, userID shared.UserID) error
}

package recommendation

import (
	"context"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над персистентными рекомендациями.
// Fallback-рекомендации не сохраняются: повторный запрос должен иметь
// шанс получить настоящую рекомендацию.
type Repository interface {
	// Upsert сохраняет рекомендацию, перезаписывая строку (user, date).
	Upsert(ctx context.Context, r *Recommendation) error

	// Get возвращает рекомендацию на указанный день.
	// Возвращает shared.ErrRecommendationNotFound, если её нет.
	Get(ctx context.Context, userID shared.UserID, day time.Time) (*Recommendation, error)

	// GetToday возвращает сегодняшнюю рекомендацию.
	// Возвращает shared.ErrRecommendationNotFound, если её нет.
	GetToday(ctx context.Context, userID shared.UserID) (*Recommendation, error)

	// ListRecent возвращает последние N рекомендаций пользователя, новые первыми.
	ListRecent(ctx context.Context, userID shared.UserID, limit int) ([]*Recommendation, error)
}

package query

import (
	"context"
	"errors"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RECOMMENDATION HISTORY QUERY
// Возвращает сохранённые рекомендации пользователя, новые первыми.
// Fallback-рекомендации в историю не попадают - они не персистятся.
// ══════════════════════════════════════════════════════════════════════════════

// GetRecommendationHistoryQuery содержит параметры запроса истории.
type GetRecommendationHistoryQuery struct {
	// UserID - внутренний ID пользователя.
	UserID string

	// Limit - максимум записей (по умолчанию 14, не больше 90).
	Limit int
}

// Validate проверяет корректность параметров.
func (q *GetRecommendationHistoryQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_recommendation_history: user_id is required")
	}
	if q.Limit <= 0 {
		q.Limit = 14
	}
	if q.Limit > 90 {
		q.Limit = 90
	}
	return nil
}

// RecommendationDTO - представление одной рекомендации.
type RecommendationDTO struct {
	// Date - день рекомендации (YYYY-MM-DD).
	Date string `json:"date"`

	// Payload - содержимое рекомендации.
	Payload recommendation.Payload `json:"payload"`

	// Source - источник: gemini или fallback.
	Source string `json:"source"`

	// Model - имя LLM-модели (пустое для fallback).
	Model string `json:"model,omitempty"`

	// CreatedAt - время генерации.
	CreatedAt time.Time `json:"created_at"`
}

// GetRecommendationHistoryResult содержит результат запроса.
type GetRecommendationHistoryResult struct {
	// UserID - ID пользователя.
	UserID string `json:"user_id"`

	// Items - рекомендации, новые первыми.
	Items []RecommendationDTO `json:"items"`
}

// GetRecommendationHistoryHandler обрабатывает запросы истории рекомендаций.
type GetRecommendationHistoryHandler struct {
	recRepo recommendation.Repository
}

// NewGetRecommendationHistoryHandler создаёт новый обработчик.
func NewGetRecommendationHistoryHandler(recRepo recommendation.Repository) *GetRecommendationHistoryHandler {
	return &GetRecommendationHistoryHandler{recRepo: recRepo}
}

// Handle выполняет запрос.
func (h *GetRecommendationHistoryHandler) Handle(ctx context.Context, query GetRecommendationHistoryQuery) (*GetRecommendationHistoryResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetRecommendationHistory", shared.ErrValidation, err.Error(), err)
	}

	userID, err := shared.NewUserID(query.UserID)
	if err != nil {
		return nil, err
	}

	items, err := h.recRepo.ListRecent(ctx, userID, query.Limit)
	if err != nil {
		return nil, shared.WrapError("query", "GetRecommendationHistory", shared.ErrInternal, "failed to load history", err)
	}

	result := &GetRecommendationHistoryResult{
		UserID: query.UserID,
		Items:  make([]RecommendationDTO, 0, len(items)),
	}
	for _, rec := range items {
		result.Items = append(result.Items, RecommendationDTO{
			Date:      rec.DayKey(),
			Payload:   rec.Payload,
			Source:    string(rec.Source),
			Model:     rec.Model,
			CreatedAt: rec.CreatedAt,
		})
	}

	return result, nil
}

// Package postgres implements PostgreSQL persistence layer for Phoenix Recovery Hub.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RecommendationRepository implements recommendation.Repository for PostgreSQL.
// Fallback recommendations never reach this repository: callers persist
// only real generator output.
type RecommendationRepository struct {
	q Querier
}

// NewRecommendationRepository creates a pool-backed RecommendationRepository.
func NewRecommendationRepository(conn *Connection) *RecommendationRepository {
	return &RecommendationRepository{q: conn}
}

const recommendationColumns = `user_id, recommendation_date, payload, source, model, created_at`

// Upsert persists a recommendation, overwriting the (user, date) row.
func (r *RecommendationRepository) Upsert(ctx context.Context, rec *recommendation.Recommendation) error {
	query := `
		INSERT INTO recommendations (
			user_id, recommendation_date, payload, source, model, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, recommendation_date) DO UPDATE SET
			payload = EXCLUDED.payload,
			source = EXCLUDED.source,
			model = EXCLUDED.model,
			created_at = EXCLUDED.created_at
	`

	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendation payload: %w", err)
	}

	_, err = r.q.Exec(ctx, query,
		string(rec.UserID),
		rec.Date,
		payloadJSON,
		string(rec.Source),
		rec.Model,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert recommendation: %w", err)
	}

	return nil
}

// Get returns the recommendation for a specific day.
func (r *RecommendationRepository) Get(ctx context.Context, userID shared.UserID, day time.Time) (*recommendation.Recommendation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM recommendations
		WHERE user_id = $1 AND recommendation_date = $2
	`, recommendationColumns)

	row := r.q.QueryRow(ctx, query, string(userID), dayOnly(day))
	return r.scanRecommendation(row)
}

// GetToday returns today's recommendation.
func (r *RecommendationRepository) GetToday(ctx context.Context, userID shared.UserID) (*recommendation.Recommendation, error) {
	return r.Get(ctx, userID, time.Now().UTC())
}

// ListRecent returns the user's last N recommendations, newest first.
func (r *RecommendationRepository) ListRecent(ctx context.Context, userID shared.UserID, limit int) ([]*recommendation.Recommendation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM recommendations
		WHERE user_id = $1
		ORDER BY recommendation_date DESC
		LIMIT $2
	`, recommendationColumns)

	rows, err := r.q.Query(ctx, query, string(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	defer rows.Close()

	recs := make([]*recommendation.Recommendation, 0)
	for rows.Next() {
		rec, err := r.scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// scanRecommendation scans a single recommendation row.
func (r *RecommendationRepository) scanRecommendation(row pgx.Row) (*recommendation.Recommendation, error) {
	var rec recommendation.Recommendation
	var userID, source string
	var payloadJSON []byte

	err := row.Scan(
		&userID,
		&rec.Date,
		&payloadJSON,
		&source,
		&rec.Model,
		&rec.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRecommendationNotFound
		}
		return nil, fmt.Errorf("failed to scan recommendation: %w", err)
	}

	rec.UserID = shared.UserID(userID)
	rec.Source = recommendation.Source(source)
	rec.Date = rec.Date.UTC()

	if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recommendation payload: %w", err)
	}

	return &rec, nil
}

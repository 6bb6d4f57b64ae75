// Package postgres implements PostgreSQL persistence layer for Phoenix Recovery Hub.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUEST RECORD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// QuestRepository implements quest.Repository for PostgreSQL.
type QuestRepository struct {
	q Querier
}

// NewQuestRepository creates a pool-backed QuestRepository.
func NewQuestRepository(conn *Connection) *QuestRepository {
	return &QuestRepository{q: conn}
}

// newQuestRepositoryTx creates a transaction-scoped QuestRepository.
func newQuestRepositoryTx(tx pgx.Tx) *QuestRepository {
	return &QuestRepository{q: tx}
}

const recordColumns = `user_id, quest_key, status, phase, xp_reward,
	   completed_at, metadata, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// Record Operations
// ─────────────────────────────────────────────────────────────────────────────

// Upsert creates or updates a record keyed by (user_id, quest_key).
func (r *QuestRepository) Upsert(ctx context.Context, record *quest.Record) error {
	query := `
		INSERT INTO quest_records (
			user_id, quest_key, status, phase, xp_reward,
			completed_at, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, quest_key) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	metadataJSON, err := json.Marshal(metadataOrEmpty(record.Metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal record metadata: %w", err)
	}

	_, err = r.q.Exec(ctx, query,
		string(record.UserID),
		string(record.QuestKey),
		string(record.Status),
		int(record.Phase),
		record.XPReward,
		nullableTime(record.CompletedAt),
		metadataJSON,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert quest record: %w", err)
	}

	return nil
}

// Get returns a record by (user, questKey).
func (r *QuestRepository) Get(ctx context.Context, userID shared.UserID, key shared.QuestKey) (*quest.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM quest_records
		WHERE user_id = $1 AND quest_key = $2
	`, recordColumns)

	row := r.q.QueryRow(ctx, query, string(userID), string(key))
	return r.scanRecord(row)
}

// GetForUpdate returns a record with a row lock. Only meaningful
// inside a transaction.
func (r *QuestRepository) GetForUpdate(ctx context.Context, userID shared.UserID, key shared.QuestKey) (*quest.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM quest_records
		WHERE user_id = $1 AND quest_key = $2
		FOR UPDATE
	`, recordColumns)

	row := r.q.QueryRow(ctx, query, string(userID), string(key))
	return r.scanRecord(row)
}

// ListByUser returns all of a user's records.
func (r *QuestRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*quest.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM quest_records
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, recordColumns)

	rows, err := r.q.Query(ctx, query, string(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list quest records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Counters
// ─────────────────────────────────────────────────────────────────────────────

// CountCompletedInPhase returns how many quests the user has completed
// within the given phase. Drives the advancement threshold check.
func (r *QuestRepository) CountCompletedInPhase(ctx context.Context, userID shared.UserID, phase shared.Phase) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM quest_records
		WHERE user_id = $1 AND phase = $2 AND status = 'completed'
	`, string(userID), int(phase)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed quests in phase: %w", err)
	}
	return count, nil
}

// CountCompleted returns the user's total completed quest count.
func (r *QuestRepository) CountCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM quest_records
		WHERE user_id = $1 AND status = 'completed'
	`, string(userID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed quests: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────────────────

// ListCompletedSince returns records completed after the given time.
func (r *QuestRepository) ListCompletedSince(ctx context.Context, userID shared.UserID, since time.Time) ([]*quest.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM quest_records
		WHERE user_id = $1 AND status = 'completed' AND completed_at > $2
		ORDER BY completed_at DESC
	`, recordColumns)

	rows, err := r.q.Query(ctx, query, string(userID), since)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed quests: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan Helpers
// ─────────────────────────────────────────────────────────────────────────────

// scanRecord scans a single quest record row.
func (r *QuestRepository) scanRecord(row pgx.Row) (*quest.Record, error) {
	var rec quest.Record
	var userID, questKey, status string
	var phase int
	var completedAt sql.NullTime
	var metadataJSON []byte

	err := row.Scan(
		&userID,
		&questKey,
		&status,
		&phase,
		&rec.XPReward,
		&completedAt,
		&metadataJSON,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrQuestRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan quest record: %w", err)
	}

	rec.UserID = shared.UserID(userID)
	rec.QuestKey = shared.QuestKey(questKey)
	rec.Status = quest.Status(status)
	rec.Phase = shared.Phase(phase)
	if completedAt.Valid {
		rec.CompletedAt = completedAt.Time
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record metadata: %w", err)
		}
	}

	return &rec, nil
}

// scanRecords scans multiple quest record rows.
func (r *QuestRepository) scanRecords(rows pgx.Rows) ([]*quest.Record, error) {
	records := make([]*quest.Record, 0)

	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// metadataOrEmpty never marshals nil metadata as JSON null.
func metadataOrEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

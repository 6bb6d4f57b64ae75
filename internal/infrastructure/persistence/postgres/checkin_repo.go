// Package postgres implements PostgreSQL persistence layer for Phoenix Recovery Hub.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/checkin"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK-IN REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CheckInRepository implements checkin.Repository for PostgreSQL.
type CheckInRepository struct {
	q Querier
}

// NewCheckInRepository creates a pool-backed CheckInRepository.
func NewCheckInRepository(conn *Connection) *CheckInRepository {
	return &CheckInRepository{q: conn}
}

const checkInColumns = `user_id, checkin_date, mood, energy, pain, sleep_hours, note, created_at`

// Upsert persists a check-in, overwriting any existing row for the
// same (user, date) pair.
func (r *CheckInRepository) Upsert(ctx context.Context, c *checkin.CheckIn) error {
	query := `
		INSERT INTO check_ins (
			user_id, checkin_date, mood, energy, pain, sleep_hours, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, checkin_date) DO UPDATE SET
			mood = EXCLUDED.mood,
			energy = EXCLUDED.energy,
			pain = EXCLUDED.pain,
			sleep_hours = EXCLUDED.sleep_hours,
			note = EXCLUDED.note,
			created_at = EXCLUDED.created_at
	`

	_, err := r.q.Exec(ctx, query,
		string(c.UserID),
		c.Date,
		int(c.Mood),
		int(c.Energy),
		int(c.Pain),
		c.SleepHours,
		c.Note,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert check-in: %w", err)
	}

	return nil
}

// Get returns the check-in for a specific day.
func (r *CheckInRepository) Get(ctx context.Context, userID shared.UserID, day time.Time) (*checkin.CheckIn, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM check_ins
		WHERE user_id = $1 AND checkin_date = $2
	`, checkInColumns)

	row := r.q.QueryRow(ctx, query, string(userID), dayOnly(day))
	return r.scanCheckIn(row)
}

// GetToday returns today's check-in, if present.
func (r *CheckInRepository) GetToday(ctx context.Context, userID shared.UserID) (*checkin.CheckIn, error) {
	return r.Get(ctx, userID, time.Now().UTC())
}

// ListRange returns check-ins within [from, to], ordered by date ascending.
func (r *CheckInRepository) ListRange(ctx context.Context, userID shared.UserID, from, to time.Time) ([]*checkin.CheckIn, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM check_ins
		WHERE user_id = $1 AND checkin_date BETWEEN $2 AND $3
		ORDER BY checkin_date ASC
	`, checkInColumns)

	rows, err := r.q.Query(ctx, query, string(userID), dayOnly(from), dayOnly(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	defer rows.Close()

	return r.scanCheckIns(rows)
}

// ListRecent returns the last N days of check-ins, newest first.
func (r *CheckInRepository) ListRecent(ctx context.Context, userID shared.UserID, days int) ([]*checkin.CheckIn, error) {
	since := dayOnly(time.Now().UTC().AddDate(0, 0, -days))

	query := fmt.Sprintf(`
		SELECT %s FROM check_ins
		WHERE user_id = $1 AND checkin_date > $2
		ORDER BY checkin_date DESC
	`, checkInColumns)

	rows, err := r.q.Query(ctx, query, string(userID), since)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent check-ins: %w", err)
	}
	defer rows.Close()

	return r.scanCheckIns(rows)
}

// GetStreak returns the user's check-in streak.
// Users with no streak row get a zero-value streak, not an error.
func (r *CheckInRepository) GetStreak(ctx context.Context, userID shared.UserID) (*checkin.Streak, error) {
	query := `
		SELECT user_id, current_streak, best_streak, last_date
		FROM streaks
		WHERE user_id = $1
	`

	var s checkin.Streak
	var id string
	var lastDate sql.NullTime

	err := r.q.QueryRow(ctx, query, string(userID)).Scan(
		&id,
		&s.CurrentStreak,
		&s.BestStreak,
		&lastDate,
	)
	if err != nil {
		if IsNoRows(err) {
			return checkin.NewStreak(userID), nil
		}
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}

	s.UserID = shared.UserID(id)
	if lastDate.Valid {
		s.LastDate = lastDate.Time
	}

	return &s, nil
}

// SaveStreak persists a streak.
func (r *CheckInRepository) SaveStreak(ctx context.Context, s *checkin.Streak) error {
	query := `
		INSERT INTO streaks (user_id, current_streak, best_streak, last_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			best_streak = EXCLUDED.best_streak,
			last_date = EXCLUDED.last_date
	`

	_, err := r.q.Exec(ctx, query,
		string(s.UserID),
		s.CurrentStreak,
		s.BestStreak,
		nullableTime(s.LastDate),
	)
	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan Helpers
// ─────────────────────────────────────────────────────────────────────────────

// scanCheckIn scans a single check-in row.
func (r *CheckInRepository) scanCheckIn(row pgx.Row) (*checkin.CheckIn, error) {
	var c checkin.CheckIn
	var userID string
	var mood, energy, pain int

	err := row.Scan(
		&userID,
		&c.Date,
		&mood,
		&energy,
		&pain,
		&c.SleepHours,
		&c.Note,
		&c.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCheckInNotFound
		}
		return nil, fmt.Errorf("failed to scan check-in: %w", err)
	}

	c.UserID = shared.UserID(userID)
	c.Mood = shared.MoodScore(mood)
	c.Energy = shared.EnergyScore(energy)
	c.Pain = shared.PainLevel(pain)
	c.Date = c.Date.UTC()

	return &c, nil
}

// scanCheckIns scans multiple check-in rows.
func (r *CheckInRepository) scanCheckIns(rows pgx.Rows) ([]*checkin.CheckIn, error) {
	checkIns := make([]*checkin.CheckIn, 0)

	for rows.Next() {
		c, err := r.scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		checkIns = append(checkIns, c)
	}

	return checkIns, rows.Err()
}

// dayOnly truncates a time to its UTC date.
func dayOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Package postgres implements PostgreSQL persistence layer for Phoenix Recovery Hub.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements profile.Repository for PostgreSQL.
// It runs either against the pool or against a transaction, depending on
// the Querier it was constructed with.
type ProfileRepository struct {
	q Querier
}

// NewProfileRepository creates a pool-backed ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{q: conn}
}

// newProfileRepositoryTx creates a transaction-scoped ProfileRepository.
func newProfileRepositoryTx(tx pgx.Tx) *ProfileRepository {
	return &ProfileRepository{q: tx}
}

const profileColumns = `id, email, password_hash, display_name, injury_type,
	   recovery_goals, daily_goal_minutes, phoenix_phase, flame_strength,
	   last_check_in_at, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO profiles (
			id, email, password_hash, display_name, injury_type,
			recovery_goals, daily_goal_minutes, phoenix_phase, flame_strength,
			last_check_in_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	goalsJSON, err := json.Marshal(goalsOrEmpty(p.RecoveryGoals))
	if err != nil {
		return fmt.Errorf("failed to marshal recovery goals: %w", err)
	}

	_, err = r.q.Exec(ctx, query,
		string(p.ID),
		string(p.Email),
		p.PasswordHash,
		p.DisplayName,
		p.InjuryType,
		goalsJSON,
		p.DailyGoalMinutes,
		int(p.PhoenixPhase),
		int(p.FlameStrength),
		nullableTime(p.LastCheckInAt),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrEmailTaken
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// GetByID returns a profile by internal ID.
func (r *ProfileRepository) GetByID(ctx context.Context, id shared.UserID) (*profile.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE id = $1`, profileColumns)

	row := r.q.QueryRow(ctx, query, string(id))
	return r.scanProfile(row)
}

// GetByIDForUpdate returns a profile with a row lock. Only meaningful
// inside a transaction.
func (r *ProfileRepository) GetByIDForUpdate(ctx context.Context, id shared.UserID) (*profile.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE id = $1 FOR UPDATE`, profileColumns)

	row := r.q.QueryRow(ctx, query, string(id))
	return r.scanProfile(row)
}

// GetByEmail returns a profile by normalized email.
func (r *ProfileRepository) GetByEmail(ctx context.Context, email shared.Email) (*profile.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE email = $1`, profileColumns)

	row := r.q.QueryRow(ctx, query, string(email))
	return r.scanProfile(row)
}

// Update updates a profile.
func (r *ProfileRepository) Update(ctx context.Context, p *profile.Profile) error {
	query := `
		UPDATE profiles SET
			email = $1,
			password_hash = $2,
			display_name = $3,
			injury_type = $4,
			recovery_goals = $5,
			daily_goal_minutes = $6,
			phoenix_phase = $7,
			flame_strength = $8,
			last_check_in_at = $9,
			updated_at = $10
		WHERE id = $11
	`

	goalsJSON, err := json.Marshal(goalsOrEmpty(p.RecoveryGoals))
	if err != nil {
		return fmt.Errorf("failed to marshal recovery goals: %w", err)
	}

	result, err := r.q.Exec(ctx, query,
		string(p.Email),
		p.PasswordHash,
		p.DisplayName,
		p.InjuryType,
		goalsJSON,
		p.DailyGoalMinutes,
		int(p.PhoenixPhase),
		int(p.FlameStrength),
		nullableTime(p.LastCheckInAt),
		time.Now().UTC(),
		string(p.ID),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrEmailTaken
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}

	return nil
}

// Delete removes a profile. Used by the onboarding saga compensation.
func (r *ProfileRepository) Delete(ctx context.Context, id shared.UserID) error {
	result, err := r.q.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Bulk Operations
// ─────────────────────────────────────────────────────────────────────────────

// ListActive returns profiles whose last check-in is not older than threshold.
func (r *ProfileRepository) ListActive(ctx context.Context, threshold time.Duration, opts profile.ListOptions) ([]*profile.Profile, error) {
	thresholdTime := time.Now().UTC().Add(-threshold)

	query := fmt.Sprintf(`
		SELECT %s FROM profiles
		WHERE last_check_in_at IS NOT NULL AND last_check_in_at >= $1
		%s
		LIMIT $2 OFFSET $3
	`, profileColumns, orderBy(opts))

	rows, err := r.q.Query(ctx, query, thresholdTime, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list active profiles: %w", err)
	}
	defer rows.Close()

	return r.scanProfiles(rows)
}

// FindLapsed finds profiles with no check-in activity for longer than threshold.
// Profiles that never checked in count from their registration time.
func (r *ProfileRepository) FindLapsed(ctx context.Context, threshold time.Duration) ([]*profile.Profile, error) {
	thresholdTime := time.Now().UTC().Add(-threshold)

	query := fmt.Sprintf(`
		SELECT %s FROM profiles
		WHERE COALESCE(last_check_in_at, created_at) < $1
		ORDER BY COALESCE(last_check_in_at, created_at) ASC
	`, profileColumns)

	rows, err := r.q.Query(ctx, query, thresholdTime)
	if err != nil {
		return nil, fmt.Errorf("failed to find lapsed profiles: %w", err)
	}
	defer rows.Close()

	return r.scanProfiles(rows)
}

// Count returns the total number of profiles.
func (r *ProfileRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, "SELECT COUNT(*) FROM profiles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Existence Checks
// ─────────────────────────────────────────────────────────────────────────────

// Exists checks whether a profile exists by ID.
func (r *ProfileRepository) Exists(ctx context.Context, id shared.UserID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)",
		string(id),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check profile existence: %w", err)
	}
	return exists, nil
}

// ExistsByEmail checks whether a profile exists by email.
func (r *ProfileRepository) ExistsByEmail(ctx context.Context, email shared.Email) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM profiles WHERE email = $1)",
		string(email),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan Helpers
// ─────────────────────────────────────────────────────────────────────────────

// scanProfile scans a single profile row.
func (r *ProfileRepository) scanProfile(row pgx.Row) (*profile.Profile, error) {
	var p profile.Profile
	var id, email string
	var phase, flame int
	var goalsJSON []byte
	var lastCheckIn sql.NullTime

	err := row.Scan(
		&id,
		&email,
		&p.PasswordHash,
		&p.DisplayName,
		&p.InjuryType,
		&goalsJSON,
		&p.DailyGoalMinutes,
		&phase,
		&flame,
		&lastCheckIn,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	p.ID = shared.UserID(id)
	p.Email = shared.Email(email)
	p.PhoenixPhase = shared.Phase(phase)
	p.FlameStrength = shared.FlameStrength(flame)
	if lastCheckIn.Valid {
		p.LastCheckInAt = lastCheckIn.Time
	}

	if len(goalsJSON) > 0 {
		if err := json.Unmarshal(goalsJSON, &p.RecoveryGoals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recovery goals: %w", err)
		}
	}

	return &p, nil
}

// scanProfiles scans multiple profile rows.
func (r *ProfileRepository) scanProfiles(rows pgx.Rows) ([]*profile.Profile, error) {
	profiles := make([]*profile.Profile, 0)

	for rows.Next() {
		p, err := r.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// orderBy builds the ORDER BY clause from list options.
// The sort field is validated against a whitelist to avoid SQL injection.
func orderBy(opts profile.ListOptions) string {
	field := "created_at"
	switch opts.SortBy {
	case "created_at", "updated_at", "last_check_in_at", "phoenix_phase", "display_name":
		field = opts.SortBy
	}

	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}

	return fmt.Sprintf("ORDER BY %s %s", field, direction)
}

// goalsOrEmpty never marshals nil goals as JSON null.
func goalsOrEmpty(goals []string) []string {
	if goals == nil {
		return []string{}
	}
	return goals
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements profile.ProgressRepository for PostgreSQL.
type ProgressRepository struct {
	q Querier
}

// NewProgressRepository creates a pool-backed ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{q: conn}
}

// newProgressRepositoryTx creates a transaction-scoped ProgressRepository.
func newProgressRepositoryTx(tx pgx.Tx) *ProgressRepository {
	return &ProgressRepository{q: tx}
}

// Get returns the user's progress aggregate.
// Users with no aggregate row get an empty Progress, not an error.
func (r *ProgressRepository) Get(ctx context.Context, userID shared.UserID) (*profile.Progress, error) {
	query := `
		SELECT user_id, total_xp, quests_completed, updated_at
		FROM progress_aggregate
		WHERE user_id = $1
	`

	var pr profile.Progress
	var id string
	var totalXP int

	err := r.q.QueryRow(ctx, query, string(userID)).Scan(
		&id,
		&totalXP,
		&pr.QuestsCompleted,
		&pr.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return profile.NewProgress(userID), nil
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	pr.UserID = shared.UserID(id)
	pr.TotalXP = shared.XP(totalXP)
	return &pr, nil
}

// AddXP incrementally adds XP for one completed quest (aggregate upsert)
// and returns the updated aggregate. Every call counts a completion, even
// for a zero-XP quest; rows are seeded separately via Seed.
func (r *ProgressRepository) AddXP(ctx context.Context, userID shared.UserID, amount int) (*profile.Progress, error) {
	query := `
		INSERT INTO progress_aggregate (user_id, total_xp, quests_completed, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_xp = progress_aggregate.total_xp + EXCLUDED.total_xp,
			quests_completed = progress_aggregate.quests_completed + 1,
			updated_at = NOW()
		RETURNING user_id, total_xp, quests_completed, updated_at
	`

	var pr profile.Progress
	var id string
	var totalXP int

	err := r.q.QueryRow(ctx, query, string(userID), amount).Scan(
		&id,
		&totalXP,
		&pr.QuestsCompleted,
		&pr.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add xp: %w", err)
	}

	pr.UserID = shared.UserID(id)
	pr.TotalXP = shared.XP(totalXP)
	return &pr, nil
}

// Seed inserts an empty aggregate row for a new user so reads never
// special-case missing rows. Existing aggregates are left untouched.
func (r *ProgressRepository) Seed(ctx context.Context, userID shared.UserID) error {
	query := `
		INSERT INTO progress_aggregate (user_id, total_xp, quests_completed, updated_at)
		VALUES ($1, 0, 0, NOW())
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, string(userID)); err != nil {
		return fmt.Errorf("failed to seed progress: %w", err)
	}
	return nil
}

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/query"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH PATH CACHE JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshPathCacheJob recomputes the quest path status map for recently
// active users and rewrites the cache entries. Completion and begin
// already invalidate per-user entries; this job exists so that the
// first request after a cold start or a Redis flush does not pay the
// recompute cost.
type RefreshPathCacheJob struct {
	profileRepo profile.Repository
	questPath   *query.GetQuestPathHandler
	logger      *slog.Logger

	config RefreshPathCacheConfig

	lastRunStats atomic.Value // *RefreshPathCacheStats
}

// RefreshPathCacheConfig contains configuration for the job.
type RefreshPathCacheConfig struct {
	// ActiveWindow selects users whose last check-in is at most this old.
	ActiveWindow time.Duration

	// BatchSize is the page size when listing active users.
	BatchSize int

	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultRefreshPathCacheConfig returns sensible defaults.
func DefaultRefreshPathCacheConfig() RefreshPathCacheConfig {
	return RefreshPathCacheConfig{
		ActiveWindow: 24 * time.Hour,
		BatchSize:    100,
		Timeout:      5 * time.Minute,
	}
}

// RefreshPathCacheStats contains statistics from a refresh run.
type RefreshPathCacheStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Refreshed   int
	Failed      int
	Errors      []error
}

// NewRefreshPathCacheJob creates the job.
func NewRefreshPathCacheJob(
	profileRepo profile.Repository,
	questPath *query.GetQuestPathHandler,
	logger *slog.Logger,
	config RefreshPathCacheConfig,
) *RefreshPathCacheJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	return &RefreshPathCacheJob{
		profileRepo: profileRepo,
		questPath:   questPath,
		logger:      logger,
		config:      config,
	}
}

// Name returns the job name.
func (j *RefreshPathCacheJob) Name() string {
	return "refresh_path_cache"
}

// Description returns a human-readable description.
func (j *RefreshPathCacheJob) Description() string {
	return "Recomputes and re-caches quest path status maps for active users"
}

// Run executes the refresh job.
func (j *RefreshPathCacheJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &RefreshPathCacheStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting refresh_path_cache job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	opts := profile.DefaultListOptions()
	opts.Limit = j.config.BatchSize

	for {
		page, err := j.profileRepo.ListActive(ctx, j.config.ActiveWindow, opts)
		if err != nil {
			return fmt.Errorf("failed to list active users: %w", err)
		}

		for _, p := range page {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			// SkipCache forces a recompute; the handler rewrites the
			// cache entry as a side effect.
			_, err := j.questPath.Handle(ctx, query.GetQuestPathQuery{
				UserID:    string(p.ID),
				SkipCache: true,
			})
			if err != nil {
				stats.Failed++
				stats.Errors = append(stats.Errors, err)
				j.logger.Error("failed to refresh path cache",
					"user_id", p.ID,
					"error", err,
				)
				continue
			}
			stats.Refreshed++
		}

		if len(page) < opts.Limit {
			break
		}
		opts.Offset += opts.Limit
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("refresh_path_cache job completed",
		"duration", stats.Duration.String(),
		"refreshed", stats.Refreshed,
		"failed", stats.Failed,
	)

	return nil
}

// LastRunStats returns statistics from the last refresh run.
func (j *RefreshPathCacheJob) LastRunStats() *RefreshPathCacheStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RefreshPathCacheStats)
}

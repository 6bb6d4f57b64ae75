// Package jobs contains implementations of scheduled jobs for the Phoenix
// Recovery Hub worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/command"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRECOMPUTE RECOMMENDATIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// PrecomputeRecommendationsJob generates the daily recommendation for every
// recently active user before they open the app in the morning.
//
// Running the Gemini calls here, spread out by the client's rate limiter,
// means the morning request spike hits stored recommendations instead of
// the API quota. Users whose generation degrades to the fallback get
// nothing persisted; their next app open retries the real generator.
type PrecomputeRecommendationsJob struct {
	profileRepo profile.Repository
	generate    *command.GenerateRecommendationHandler
	logger      *slog.Logger

	config PrecomputeRecommendationsConfig

	lastRunStats atomic.Value // *PrecomputeRecommendationsStats
}

// PrecomputeRecommendationsConfig contains configuration for the job.
type PrecomputeRecommendationsConfig struct {
	// ActiveWindow selects users whose last check-in is at most this old.
	ActiveWindow time.Duration

	// BatchSize is the page size when listing active users.
	BatchSize int

	// Concurrency is the number of generations running in parallel.
	// Keep it low: every generation is one Gemini request.
	Concurrency int

	// Timeout is the maximum duration for the whole job.
	Timeout time.Duration
}

// DefaultPrecomputeRecommendationsConfig returns sensible defaults.
func DefaultPrecomputeRecommendationsConfig() PrecomputeRecommendationsConfig {
	return PrecomputeRecommendationsConfig{
		ActiveWindow: 7 * 24 * time.Hour,
		BatchSize:    100,
		Concurrency:  2,
		Timeout:      30 * time.Minute,
	}
}

// PrecomputeRecommendationsStats contains statistics from a run.
type PrecomputeRecommendationsStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	UsersProcessed int
	Generated      int
	AlreadyStored  int
	Degraded       int
	Failed         int
	Errors         []error
}

// NewPrecomputeRecommendationsJob creates the job.
func NewPrecomputeRecommendationsJob(
	profileRepo profile.Repository,
	generate *command.GenerateRecommendationHandler,
	logger *slog.Logger,
	config PrecomputeRecommendationsConfig,
) *PrecomputeRecommendationsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 2
	}

	return &PrecomputeRecommendationsJob{
		profileRepo: profileRepo,
		generate:    generate,
		logger:      logger,
		config:      config,
	}
}

// Name returns the job name.
func (j *PrecomputeRecommendationsJob) Name() string {
	return "precompute_recommendations"
}

// Description returns a human-readable description.
func (j *PrecomputeRecommendationsJob) Description() string {
	return "Generates the daily recommendation for recently active users ahead of time"
}

// Run executes the job.
func (j *PrecomputeRecommendationsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &PrecomputeRecommendationsStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting precompute_recommendations job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	users, err := j.collectActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active users: %w", err)
	}

	j.logger.Info("found active users for precompute", "count", len(users))

	j.generateConcurrently(ctx, users, stats)

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("precompute_recommendations job completed",
		"duration", stats.Duration.String(),
		"processed", stats.UsersProcessed,
		"generated", stats.Generated,
		"already_stored", stats.AlreadyStored,
		"degraded", stats.Degraded,
		"failed", stats.Failed,
	)

	return nil
}

// collectActiveUsers pages through all users active within the window.
func (j *PrecomputeRecommendationsJob) collectActiveUsers(ctx context.Context) ([]*profile.Profile, error) {
	var all []*profile.Profile

	opts := profile.DefaultListOptions()
	opts.Limit = j.config.BatchSize

	for {
		page, err := j.profileRepo.ListActive(ctx, j.config.ActiveWindow, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < opts.Limit {
			return all, nil
		}
		opts.Offset += opts.Limit
	}
}

// generateConcurrently runs generations through a small worker pool.
func (j *PrecomputeRecommendationsJob) generateConcurrently(
	ctx context.Context,
	users []*profile.Profile,
	stats *PrecomputeRecommendationsStats,
) {
	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, j.config.Concurrency)
		mu        sync.Mutex
	)

	for _, p := range users {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(userID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result, err := j.generate.Handle(ctx, command.GenerateRecommendationCommand{
				UserID: userID,
			})

			mu.Lock()
			defer mu.Unlock()

			stats.UsersProcessed++
			switch {
			case err != nil:
				stats.Failed++
				stats.Errors = append(stats.Errors, err)
				j.logger.Error("precompute failed for user",
					"user_id", userID,
					"error", err,
				)
			case result.FromStore:
				stats.AlreadyStored++
			case result.Degraded:
				stats.Degraded++
			default:
				stats.Generated++
			}
		}(string(p.ID))
	}

	wg.Wait()
}

// LastRunStats returns statistics from the last run.
func (j *PrecomputeRecommendationsJob) LastRunStats() *PrecomputeRecommendationsStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*PrecomputeRecommendationsStats)
}

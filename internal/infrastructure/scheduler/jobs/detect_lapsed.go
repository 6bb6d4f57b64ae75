package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DETECT LAPSED JOB
// ══════════════════════════════════════════════════════════════════════════════

// DetectLapsedJob finds users whose last check-in is older than the lapse
// threshold and publishes ProfileLapsedEvent for each. Downstream handlers
// decide how to re-engage; the job itself never contacts users.
//
// A per-user cooldown prevents the same lapse from being announced on
// every run while the user stays away.
type DetectLapsedJob struct {
	profileRepo    profile.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	config DetectLapsedConfig

	mu            sync.Mutex
	lastPublished map[string]time.Time

	lastRunStats atomic.Value // *DetectLapsedStats
}

// DetectLapsedConfig contains configuration for the detect lapsed job.
type DetectLapsedConfig struct {
	// LapseThreshold is how long without a check-in counts as lapsed.
	LapseThreshold time.Duration

	// PublishCooldown is the minimum interval between lapse events
	// for the same user.
	PublishCooldown time.Duration

	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultDetectLapsedConfig returns sensible defaults.
func DefaultDetectLapsedConfig() DetectLapsedConfig {
	return DetectLapsedConfig{
		LapseThreshold:  3 * 24 * time.Hour,
		PublishCooldown: 2 * 24 * time.Hour,
		Timeout:         5 * time.Minute,
	}
}

// DetectLapsedStats contains statistics from a detection run.
type DetectLapsedStats struct {
	StartedAt       time.Time
	CompletedAt     time.Time
	Duration        time.Duration
	LapsedFound     int
	EventsPublished int
	SkippedCooldown int
	Errors          []error
}

// NewDetectLapsedJob creates a new detect lapsed job.
func NewDetectLapsedJob(
	profileRepo profile.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config DetectLapsedConfig,
) *DetectLapsedJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.LapseThreshold <= 0 {
		config.LapseThreshold = 3 * 24 * time.Hour
	}

	return &DetectLapsedJob{
		profileRepo:    profileRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
		config:         config,
		lastPublished:  make(map[string]time.Time),
	}
}

// Name returns the job name.
func (j *DetectLapsedJob) Name() string {
	return "detect_lapsed"
}

// Description returns a human-readable description.
func (j *DetectLapsedJob) Description() string {
	return "Detects users without recent check-ins and publishes lapse events"
}

// Run executes the detection job.
func (j *DetectLapsedJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &DetectLapsedStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting detect_lapsed job",
		"threshold", j.config.LapseThreshold.String(),
	)

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	lapsed, err := j.profileRepo.FindLapsed(ctx, j.config.LapseThreshold)
	if err != nil {
		return fmt.Errorf("failed to find lapsed users: %w", err)
	}

	stats.LapsedFound = len(lapsed)

	for _, p := range lapsed {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		j.processLapsedUser(p, stats)
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("detect_lapsed job completed",
		"duration", stats.Duration.String(),
		"lapsed_found", stats.LapsedFound,
		"events_published", stats.EventsPublished,
		"skipped_cooldown", stats.SkippedCooldown,
	)

	return nil
}

// processLapsedUser publishes a lapse event unless the user is in cooldown.
func (j *DetectLapsedJob) processLapsedUser(p *profile.Profile, stats *DetectLapsedStats) {
	userID := string(p.ID)

	if j.inCooldown(userID) {
		stats.SkippedCooldown++
		return
	}

	daysInactive := p.DaysSinceLastCheckIn()
	if daysInactive < 0 {
		// Never checked in; measure from registration.
		daysInactive = int(time.Since(p.CreatedAt).Hours() / 24)
	}

	event := shared.NewProfileLapsedEvent(userID, daysInactive, p.LastCheckInAt)
	if err := j.eventPublisher.Publish(event); err != nil {
		stats.Errors = append(stats.Errors, err)
		j.logger.Error("failed to publish lapse event",
			"user_id", userID,
			"error", err,
		)
		return
	}

	j.markPublished(userID)
	stats.EventsPublished++
}

func (j *DetectLapsedJob) inCooldown(userID string) bool {
	if j.config.PublishCooldown <= 0 {
		return false
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	last, ok := j.lastPublished[userID]
	return ok && time.Since(last) < j.config.PublishCooldown
}

func (j *DetectLapsedJob) markPublished(userID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastPublished[userID] = time.Now()
}

// LastRunStats returns statistics from the last detection run.
func (j *DetectLapsedJob) LastRunStats() *DetectLapsedStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*DetectLapsedStats)
}

// Package checkin contains domain entities and business logic for
// daily mood/energy/sleep check-ins.
package checkin

import (
	"context"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// Repository defines the interface for check-in persistence.
// This interface is implemented by the infrastructure layer.
// The domain layer has no knowledge of the actual storage mechanism.
type Repository interface {
	// Upsert persists a check-in, overwriting any existing row for
	// the same (user, date) pair.
	Upsert(ctx context.Context, c *CheckIn) error

	// Get returns the check-in for a specific day.
	// Returns shared.ErrCheckInNotFound if none exists.
	Get(ctx context.Context, userID shared.UserID, day time.Time) (*CheckIn, error)

	// GetToday returns today's check-in, if present.
	// Returns shared.ErrCheckInNotFound if none exists.
	GetToday(ctx context.Context, userID shared.UserID) (*CheckIn, error)

	// ListRange returns check-ins within [from, to], ordered by date ascending.
	ListRange(ctx context.Context, userID shared.UserID, from, to time.Time) ([]*CheckIn, error)

	// ListRecent returns the last N days of check-ins, newest first.
	ListRecent(ctx context.Context, userID shared.UserID, days int) ([]*CheckIn, error)

	// GetStreak returns the user's check-in streak.
	// Users with no check-ins get a zero-value streak, not an error.
	GetStreak(ctx context.Context, userID shared.UserID) (*Streak, error)

	// SaveStreak persists a streak.
	SaveStreak(ctx context.Context, s *Streak) error
}

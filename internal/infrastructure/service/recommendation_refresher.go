package service

import (
	"context"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/command"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// RecommendationRefresher adapts the generate-recommendation command to
// the narrow refresher interface the phase-advanced event handler needs.
// Refresh always forces regeneration: the stored recommendation was
// built for the previous phase.
type RecommendationRefresher struct {
	generate *command.GenerateRecommendationHandler
}

// NewRecommendationRefresher creates a new RecommendationRefresher.
func NewRecommendationRefresher(generate *command.GenerateRecommendationHandler) *RecommendationRefresher {
	return &RecommendationRefresher{
		generate: generate,
	}
}

// Refresh regenerates today's recommendation for the user.
func (r *RecommendationRefresher) Refresh(ctx context.Context, userID shared.UserID) error {
	_, err := r.generate.Handle(ctx, command.GenerateRecommendationCommand{
		UserID: string(userID),
		Force:  true,
	})
	return err
}

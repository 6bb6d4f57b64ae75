package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PROFILE COMMAND
// Изменяет настраиваемые поля профиля. Прогрессия (фаза, пламя) этим
// путём не меняется - она принадлежит только выполнению квестов.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProfileCommand содержит изменяемые поля профиля.
// Nil-указатель означает "не трогать поле".
type UpdateProfileCommand struct {
	// UserID - внутренний ID пользователя.
	UserID string

	// DisplayName - новое отображаемое имя.
	DisplayName *string

	// InjuryType - новый тип травмы.
	InjuryType *string

	// RecoveryGoals - новый список целей восстановления.
	RecoveryGoals *[]string

	// DailyGoalMinutes - новая дневная цель в минутах (1-1440).
	DailyGoalMinutes *int
}

// Validate проверяет корректность команды.
func (c UpdateProfileCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("update_profile: user_id is required")
	}
	if c.DisplayName == nil && c.InjuryType == nil && c.RecoveryGoals == nil && c.DailyGoalMinutes == nil {
		return errors.New("update_profile: nothing to update")
	}
	if c.DisplayName != nil {
		name := strings.TrimSpace(*c.DisplayName)
		if len(name) == 0 || len(name) > 100 {
			return errors.New("update_profile: display name must be 1-100 chars")
		}
	}
	return nil
}

// UpdateProfileResult содержит обновлённый профиль.
type UpdateProfileResult struct {
	// Profile - профиль после обновления.
	Profile *profile.Profile
}

// UpdateProfileHandler обрабатывает UpdateProfileCommand.
type UpdateProfileHandler struct {
	profileRepo  profile.Repository
	profileCache profile.Cache
}

// NewUpdateProfileHandler создаёт новый обработчик.
// profileCache может быть nil.
func NewUpdateProfileHandler(profileRepo profile.Repository, profileCache profile.Cache) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		profileRepo:  profileRepo,
		profileCache: profileCache,
	}
}

// Handle выполняет команду обновления профиля.
func (h *UpdateProfileHandler) Handle(ctx context.Context, cmd UpdateProfileCommand) (*UpdateProfileResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_profile: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}

	prof, err := h.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("update_profile: load profile: %w", err)
	}

	if cmd.DisplayName != nil {
		prof.DisplayName = strings.TrimSpace(*cmd.DisplayName)
	}
	if cmd.InjuryType != nil {
		prof.InjuryType = strings.TrimSpace(*cmd.InjuryType)
	}
	if cmd.RecoveryGoals != nil {
		prof.RecoveryGoals = *cmd.RecoveryGoals
	}
	if cmd.DailyGoalMinutes != nil {
		if err := prof.UpdateGoals(prof.RecoveryGoals, *cmd.DailyGoalMinutes); err != nil {
			return nil, err
		}
	}

	if err := h.profileRepo.Update(ctx, prof); err != nil {
		return nil, fmt.Errorf("update_profile: save: %w", err)
	}

	if h.profileCache != nil {
		_ = h.profileCache.Invalidate(ctx, userID)
	}

	return &UpdateProfileResult{Profile: prof}, nil
}

// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
// Sagas ensure consistency across operations and handle compensation on failures.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/checkin"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ONBOARDING SAGA
// Complex business process: registration of a new user.
// Flow: Validate → Check Existence → Hash Password → Create Profile →
//
//	Initialize Progress → Open Session → Welcome Recommendation → Publish Event
//
// ══════════════════════════════════════════════════════════════════════════════

// OnboardingInput contains all data required to register a new user.
type OnboardingInput struct {
	// Email - email for authentication (required).
	Email string

	// Password - plaintext password, hashed with bcrypt inside the saga (required).
	Password string

	// DisplayName - name used in the app and in recommendation prompts (required).
	DisplayName string

	// InjuryType - free-text injury description (optional).
	InjuryType string

	// RecoveryGoals - recovery goals chosen during signup (optional).
	RecoveryGoals []string

	// DailyGoalMinutes - daily practice goal (optional, defaults applied by domain).
	DailyGoalMinutes int
}

// Validate checks if the input is valid for onboarding.
func (i OnboardingInput) Validate() error {
	if i.Email == "" {
		return errors.New("onboarding: email is required")
	}
	if len(i.Password) < 8 {
		return ErrPasswordTooShort
	}
	if i.DisplayName == "" {
		return errors.New("onboarding: display name is required")
	}
	return nil
}

// OnboardingResult contains the result of a successful onboarding.
type OnboardingResult struct {
	// Profile - the newly created profile entity.
	Profile *profile.Profile

	// SessionToken - bearer token for the freshly opened session.
	SessionToken string

	// WelcomeRecommendation - the first recommendation, generated during
	// signup so the home screen is never empty. May be nil on LLM failure.
	WelcomeRecommendation *recommendation.Recommendation

	// OnboardedAt - timestamp of successful onboarding.
	OnboardedAt time.Time
}

// OnboardingStep represents a step in the onboarding process.
type OnboardingStep string

const (
	StepValidateInput      OnboardingStep = "validate_input"
	StepCheckExistence     OnboardingStep = "check_existence"
	StepHashPassword       OnboardingStep = "hash_password"
	StepCreateProfile      OnboardingStep = "create_profile"
	StepInitializeProgress OnboardingStep = "initialize_progress"
	StepOpenSession        OnboardingStep = "open_session"
	StepWelcome            OnboardingStep = "welcome_recommendation"
	StepPublishEvent       OnboardingStep = "publish_event"
	StepComplete           OnboardingStep = "complete"
)

// OnboardingState tracks the current state of the onboarding saga.
type OnboardingState struct {
	CurrentStep  OnboardingStep
	Input        OnboardingInput
	PasswordHash string
	Profile      *profile.Profile
	StartedAt    time.Time
	CompletedAt  *time.Time
	Error        error
	FailedStep   OnboardingStep
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	// GenerateID generates a new unique ID.
	GenerateID() string
}

// TokenGenerator generates opaque session tokens.
type TokenGenerator interface {
	// GenerateToken generates a new random session token.
	GenerateToken() (string, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// ONBOARDING SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// OnboardingSaga orchestrates the complete user registration process.
// It follows the Saga pattern to ensure consistency across multiple operations.
//
// Philosophy: signup happens on some of the hardest days of recovery.
// Every step that can fail softly, fails softly.
type OnboardingSaga struct {
	// Dependencies (injected via constructor)
	profileRepo  profile.Repository
	progressRepo profile.ProgressRepository
	checkinRepo  checkin.Repository
	sessionStore profile.SessionStore
	generator    recommendation.Generator
	recRepo      recommendation.Repository
	eventBus     shared.EventPublisher
	idGenerator  IDGenerator
	tokens       TokenGenerator

	// Configuration
	sessionTTL time.Duration
	bcryptCost int
}

// OnboardingSagaConfig contains configuration for the onboarding saga.
type OnboardingSagaConfig struct {
	SessionTTL time.Duration
	BcryptCost int
}

// DefaultOnboardingConfig returns default configuration.
func DefaultOnboardingConfig() OnboardingSagaConfig {
	return OnboardingSagaConfig{
		SessionTTL: 30 * 24 * time.Hour,
		BcryptCost: bcrypt.DefaultCost,
	}
}

// NewOnboardingSaga creates a new onboarding saga with all dependencies.
// generator and recRepo may be nil; the welcome recommendation is then skipped.
func NewOnboardingSaga(
	profileRepo profile.Repository,
	progressRepo profile.ProgressRepository,
	checkinRepo checkin.Repository,
	sessionStore profile.SessionStore,
	generator recommendation.Generator,
	recRepo recommendation.Repository,
	eventBus shared.EventPublisher,
	idGenerator IDGenerator,
	tokens TokenGenerator,
	config OnboardingSagaConfig,
) *OnboardingSaga {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultOnboardingConfig().SessionTTL
	}
	if config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost {
		config.BcryptCost = bcrypt.DefaultCost
	}

	return &OnboardingSaga{
		profileRepo:  profileRepo,
		progressRepo: progressRepo,
		checkinRepo:  checkinRepo,
		sessionStore: sessionStore,
		generator:    generator,
		recRepo:      recRepo,
		eventBus:     eventBus,
		idGenerator:  idGenerator,
		tokens:       tokens,
		sessionTTL:   config.SessionTTL,
		bcryptCost:   config.BcryptCost,
	}
}

// Execute runs the complete onboarding process.
// It returns the result on success or an error with context about the failure.
func (s *OnboardingSaga) Execute(ctx context.Context, input OnboardingInput) (*OnboardingResult, error) {
	state := &OnboardingState{
		CurrentStep: StepValidateInput,
		Input:       input,
		StartedAt:   time.Now().UTC(),
	}

	// Step 1: Validate input
	if err := s.stepValidateInput(state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 2: Check if the email is already registered
	state.CurrentStep = StepCheckExistence
	if err := s.stepCheckExistence(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 3: Hash the password
	state.CurrentStep = StepHashPassword
	if err := s.stepHashPassword(state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 4: Create profile entity
	state.CurrentStep = StepCreateProfile
	if err := s.stepCreateProfile(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 5: Initialize progress tracking
	state.CurrentStep = StepInitializeProgress
	if err := s.stepInitializeProgress(ctx, state); err != nil {
		// Compensate: remove the partially created profile.
		s.rollbackProfileCreation(ctx, state)
		return nil, s.wrapError(state, err)
	}

	// Step 6: Open a session so the client is logged in right away
	state.CurrentStep = StepOpenSession
	token, err := s.stepOpenSession(ctx, state)
	if err != nil {
		s.rollbackProfileCreation(ctx, state)
		return nil, s.wrapError(state, err)
	}

	// Step 7: Welcome recommendation (non-critical, best effort)
	state.CurrentStep = StepWelcome
	welcome := s.stepWelcomeRecommendation(ctx, state)

	// Step 8: Publish domain event (non-critical, events can be replayed)
	state.CurrentStep = StepPublishEvent
	_ = s.stepPublishEvent(state)

	// Complete
	state.CurrentStep = StepComplete
	now := time.Now().UTC()
	state.CompletedAt = &now

	return &OnboardingResult{
		Profile:               state.Profile,
		SessionToken:          token,
		WelcomeRecommendation: welcome,
		OnboardedAt:           now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

// stepValidateInput validates all input parameters.
func (s *OnboardingSaga) stepValidateInput(state *OnboardingState) error {
	if err := state.Input.Validate(); err != nil {
		state.FailedStep = StepValidateInput
		state.Error = err
		return err
	}
	if _, err := shared.NewEmail(state.Input.Email); err != nil {
		state.FailedStep = StepValidateInput
		state.Error = err
		return err
	}
	return nil
}

// stepCheckExistence verifies the email is not already registered.
func (s *OnboardingSaga) stepCheckExistence(ctx context.Context, state *OnboardingState) error {
	email, _ := shared.NewEmail(state.Input.Email)

	exists, err := s.profileRepo.ExistsByEmail(ctx, email)
	if err != nil {
		state.FailedStep = StepCheckExistence
		state.Error = fmt.Errorf("failed to check email existence: %w", err)
		return state.Error
	}
	if exists {
		state.FailedStep = StepCheckExistence
		state.Error = shared.ErrEmailTaken
		return state.Error
	}

	return nil
}

// stepHashPassword hashes the password with bcrypt.
func (s *OnboardingSaga) stepHashPassword(state *OnboardingState) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(state.Input.Password), s.bcryptCost)
	if err != nil {
		state.FailedStep = StepHashPassword
		state.Error = fmt.Errorf("failed to hash password: %w", err)
		return state.Error
	}

	state.PasswordHash = string(hash)
	return nil
}

// stepCreateProfile creates the profile entity and persists it.
func (s *OnboardingSaga) stepCreateProfile(ctx context.Context, state *OnboardingState) error {
	email, _ := shared.NewEmail(state.Input.Email)

	newProfile, err := profile.NewProfile(profile.NewProfileParams{
		ID:               shared.UserID(s.idGenerator.GenerateID()),
		Email:            email,
		PasswordHash:     state.PasswordHash,
		DisplayName:      state.Input.DisplayName,
		InjuryType:       state.Input.InjuryType,
		RecoveryGoals:    state.Input.RecoveryGoals,
		DailyGoalMinutes: state.Input.DailyGoalMinutes,
	})
	if err != nil {
		state.FailedStep = StepCreateProfile
		state.Error = fmt.Errorf("failed to create profile entity: %w", err)
		return state.Error
	}

	if err := s.profileRepo.Create(ctx, newProfile); err != nil {
		state.FailedStep = StepCreateProfile
		state.Error = fmt.Errorf("failed to persist profile: %w", err)
		return state.Error
	}

	state.Profile = newProfile
	return nil
}

// stepInitializeProgress sets up the XP aggregate and the check-in streak.
func (s *OnboardingSaga) stepInitializeProgress(ctx context.Context, state *OnboardingState) error {
	// Seed an empty XP aggregate so reads never special-case new users.
	if err := s.progressRepo.Seed(ctx, state.Profile.ID); err != nil {
		state.FailedStep = StepInitializeProgress
		state.Error = fmt.Errorf("failed to initialize progress: %w", err)
		return state.Error
	}

	streak := checkin.NewStreak(state.Profile.ID)
	if err := s.checkinRepo.SaveStreak(ctx, streak); err != nil {
		state.FailedStep = StepInitializeProgress
		state.Error = fmt.Errorf("failed to initialize streak: %w", err)
		return state.Error
	}

	return nil
}

// stepOpenSession creates a bearer session for the new user.
func (s *OnboardingSaga) stepOpenSession(ctx context.Context, state *OnboardingState) (string, error) {
	token, err := s.tokens.GenerateToken()
	if err != nil {
		state.FailedStep = StepOpenSession
		state.Error = fmt.Errorf("failed to generate session token: %w", err)
		return "", state.Error
	}

	if err := s.sessionStore.Create(ctx, token, state.Profile.ID, s.sessionTTL); err != nil {
		state.FailedStep = StepOpenSession
		state.Error = fmt.Errorf("failed to open session: %w", err)
		return "", state.Error
	}

	return token, nil
}

// stepWelcomeRecommendation generates the first recommendation. Failures are
// swallowed: the daily endpoint will serve the fallback until the LLM recovers.
func (s *OnboardingSaga) stepWelcomeRecommendation(ctx context.Context, state *OnboardingState) *recommendation.Recommendation {
	if s.generator == nil || s.recRepo == nil {
		return nil
	}

	prompt := recommendation.PromptContext{
		UserID:           state.Profile.ID,
		DisplayName:      state.Profile.DisplayName,
		InjuryType:       state.Profile.InjuryType,
		RecoveryGoals:    state.Profile.RecoveryGoals,
		DailyGoalMinutes: state.Profile.DailyGoalMinutes,
		Phase:            state.Profile.PhoenixPhase,
	}

	rec, err := s.generator.Generate(ctx, prompt, time.Now().UTC())
	if err != nil {
		return nil
	}
	if err := s.recRepo.Upsert(ctx, rec); err != nil {
		return nil
	}

	return rec
}

// stepPublishEvent publishes the ProfileRegistered domain event.
func (s *OnboardingSaga) stepPublishEvent(state *OnboardingState) error {
	event := shared.NewProfileRegisteredEvent(
		string(state.Profile.ID),
		string(state.Profile.Email),
		state.Profile.DisplayName,
		state.Profile.InjuryType,
	)

	if err := s.eventBus.Publish(event); err != nil {
		return fmt.Errorf("failed to publish profile registered event: %w", err)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// rollbackProfileCreation attempts to delete a partially created profile.
func (s *OnboardingSaga) rollbackProfileCreation(ctx context.Context, state *OnboardingState) {
	if state.Profile == nil {
		return
	}

	// Best effort: an orphaned row would block the email from retrying.
	_ = s.profileRepo.Delete(ctx, state.Profile.ID)
}

// wrapError wraps an error with saga context.
func (s *OnboardingSaga) wrapError(state *OnboardingState, err error) error {
	return &OnboardingError{
		Step:    state.FailedStep,
		Cause:   err,
		Message: fmt.Sprintf("onboarding failed at step '%s': %v", state.FailedStep, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// OnboardingError represents an error during the onboarding process.
type OnboardingError struct {
	Step    OnboardingStep
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *OnboardingError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *OnboardingError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if the error can be retried.
func (e *OnboardingError) IsRetryable() bool {
	// Validation and existence errors are not retryable.
	if e.Step == StepValidateInput || e.Step == StepCheckExistence {
		return false
	}
	return true
}

// Saga-specific errors.
var (
	// ErrPasswordTooShort - password shorter than the 8 character minimum.
	ErrPasswordTooShort = errors.New("onboarding: password must be at least 8 characters")
)

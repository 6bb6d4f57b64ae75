// Package service contains infrastructure-level adapters between the
// application layer and external facilities.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
	"github.com/phoenixpath/phoenix-recovery-hub/pkg/logger"
)

// AuthService handles login, logout and session resolution.
// Registration goes through the onboarding saga; this service covers
// everything after the account exists.
//
// It also implements the saga's IDGenerator and TokenGenerator, so one
// instance serves both registration and login token needs.
type AuthService struct {
	profileRepo  profile.Repository
	sessionStore profile.SessionStore
	sessionTTL   time.Duration
	logger       *logger.Logger
}

// AuthConfig contains configuration for the AuthService.
type AuthConfig struct {
	// SessionTTL is the lifetime of login sessions.
	SessionTTL time.Duration

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultAuthConfig returns the default configuration.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		SessionTTL: 30 * 24 * time.Hour,
	}
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	profileRepo profile.Repository,
	sessionStore profile.SessionStore,
	config AuthConfig,
) *AuthService {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultAuthConfig().SessionTTL
	}
	if config.Logger == nil {
		config.Logger = logger.Default()
	}

	return &AuthService{
		profileRepo:  profileRepo,
		sessionStore: sessionStore,
		sessionTTL:   config.SessionTTL,
		logger:       config.Logger.With(logger.Component("auth_service")),
	}
}

// Login verifies credentials and opens a session, returning the profile
// and the session token.
// Returns shared.ErrInvalidCredentials for an unknown email or a wrong
// password; the two cases are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, rawEmail, password string) (*profile.Profile, string, error) {
	email, err := shared.NewEmail(rawEmail)
	if err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}

	p, err := s.profileRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrProfileNotFound) {
			return nil, "", shared.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("auth: load profile: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("failed login attempt", logger.UserID(string(p.ID)))
		return nil, "", shared.ErrInvalidCredentials
	}

	token, err := s.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("auth: generate token: %w", err)
	}

	if err := s.sessionStore.Create(ctx, token, p.ID, s.sessionTTL); err != nil {
		return nil, "", fmt.Errorf("auth: create session: %w", err)
	}

	s.logger.Info("user logged in", logger.UserID(string(p.ID)))

	return p, token, nil
}

// Logout revokes the session for the given token.
// Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessionStore.Revoke(ctx, token)
}

// Resolve maps a session token to a user ID and slides the expiration.
// Returns shared.ErrSessionExpired for unknown or expired tokens.
func (s *AuthService) Resolve(ctx context.Context, token string) (shared.UserID, error) {
	userID, err := s.sessionStore.Resolve(ctx, token)
	if err != nil {
		return "", err
	}

	// Sliding expiration: active users stay logged in.
	if err := s.sessionStore.Refresh(ctx, token, s.sessionTTL); err != nil {
		s.logger.Warn("failed to refresh session", logger.Err(err))
	}

	return userID, nil
}

// GenerateID implements saga.IDGenerator.
func (s *AuthService) GenerateID() string {
	return uuid.NewString()
}

// GenerateToken implements saga.TokenGenerator.
// Tokens are 256 bits of randomness, hex encoded. Opaque on purpose:
// nothing about the user is recoverable from the token itself.
func (s *AuthService) GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

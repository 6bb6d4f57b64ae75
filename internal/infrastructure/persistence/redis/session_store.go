package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// SessionStore implements profile.SessionStore using the generic Redis Cache.
// Sessions map an opaque bearer token to a user ID with a TTL; an expired
// or unknown token is indistinguishable from a revoked one.
type SessionStore struct {
	cache *Cache
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(cache *Cache) *SessionStore {
	return &SessionStore{
		cache: cache,
	}
}

// Create stores a session with the given TTL.
func (s *SessionStore) Create(ctx context.Context, token string, userID shared.UserID, ttl time.Duration) error {
	if token == "" {
		return ErrCacheKeyEmpty
	}

	if err := s.cache.SetString(ctx, SessionKey(token), string(userID), ttl); err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

// Resolve returns the user ID for a token.
// Returns shared.ErrSessionExpired for an unknown or expired token.
func (s *SessionStore) Resolve(ctx context.Context, token string) (shared.UserID, error) {
	if token == "" {
		return "", shared.ErrSessionExpired
	}

	val, err := s.cache.GetString(ctx, SessionKey(token))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return "", shared.ErrSessionExpired
		}
		return "", fmt.Errorf("session: resolve: %w", err)
	}

	return shared.UserID(val), nil
}

// Revoke deletes a session.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.cache.Delete(ctx, SessionKey(token))
}

// Refresh extends a session's TTL (sliding expiration).
func (s *SessionStore) Refresh(ctx context.Context, token string, ttl time.Duration) error {
	if token == "" {
		return shared.ErrSessionExpired
	}
	return s.cache.Expire(ctx, SessionKey(token), ttl)
}

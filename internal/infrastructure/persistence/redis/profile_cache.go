package redis

import (
	"context"
	"errors"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// ProfileCache implements profile.Cache using the generic Redis Cache.
// Cached entries carry the full profile including the password hash;
// the cache shares the trust boundary of the database.
type ProfileCache struct {
	cache *Cache
}

// NewProfileCache creates a new ProfileCache.
func NewProfileCache(cache *Cache) *ProfileCache {
	return &ProfileCache{
		cache: cache,
	}
}

// Get fetches a profile from cache.
// Returns ErrCacheMiss if absent.
func (c *ProfileCache) Get(ctx context.Context, id shared.UserID) (*profile.Profile, error) {
	var p profile.Profile
	if err := c.cache.Get(ctx, ProfileKey(string(id)), &p); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return &p, nil
}

// Set stores a profile in cache with a TTL.
func (c *ProfileCache) Set(ctx context.Context, p *profile.Profile, ttl time.Duration) error {
	if p == nil {
		return nil
	}
	return c.cache.Set(ctx, ProfileKey(string(p.ID)), p, ttl)
}

// Invalidate removes a profile from cache.
func (c *ProfileCache) Invalidate(ctx context.Context, id shared.UserID) error {
	return c.cache.Delete(ctx, ProfileKey(string(id)))
}

package redis

import (
	"context"
	"errors"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// PathCache implements quest.Cache using the generic Redis Cache.
// It stores the computed quest path status map per user; quest
// completion and begin invalidate the entry.
type PathCache struct {
	cache *Cache
}

// NewPathCache creates a new PathCache.
func NewPathCache(cache *Cache) *PathCache {
	return &PathCache{
		cache: cache,
	}
}

// GetStatuses fetches the user's status map from cache.
// Returns ErrCacheMiss if absent; callers recompute on miss.
func (p *PathCache) GetStatuses(ctx context.Context, userID shared.UserID) (quest.StatusMap, error) {
	var raw map[string]string
	if err := p.cache.Get(ctx, PathKey(string(userID)), &raw); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	statuses := make(quest.StatusMap, len(raw))
	for key, status := range raw {
		statuses[shared.QuestKey(key)] = quest.Status(status)
	}
	return statuses, nil
}

// SetStatuses stores the user's status map with a TTL.
func (p *PathCache) SetStatuses(ctx context.Context, userID shared.UserID, statuses quest.StatusMap, ttl time.Duration) error {
	raw := make(map[string]string, len(statuses))
	for key, status := range statuses {
		raw[string(key)] = string(status)
	}
	return p.cache.Set(ctx, PathKey(string(userID)), raw, ttl)
}

// Invalidate removes the user's status map from cache.
func (p *PathCache) Invalidate(ctx context.Context, userID shared.UserID) error {
	return p.cache.Delete(ctx, PathKey(string(userID)))
}

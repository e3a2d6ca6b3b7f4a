package odds

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps the latest snapshot per game under "odds:current:{gameID}".
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

func key(gameID string) string { return "odds:current:" + gameID }

// Get returns the cached snapshot. ok is false on a miss.
func (r *RedisCache) Get(ctx context.Context, gameID string) (Snapshot, bool, error) {
	b, err := r.Client.Get(ctx, key(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, false, err
	}
	return s, true, nil
}

// Set stores s with the cache TTL.
func (r *RedisCache) Set(ctx context.Context, s Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(s.GameID), b, r.TTL).Err()
}

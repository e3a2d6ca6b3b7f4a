// Package live pushes odds changes to WebSocket subscribers. Placements
// publish on a Redis channel; every bet-service replica subscribes and fans
// the update out to its own connections.
package live

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/bet-service/odds"
)

// RedisBroadcaster refreshes the odds cache and publishes the update.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
	cache   *odds.RedisCache
	log     *zap.Logger
}

func NewRedisBroadcaster(rdb *redis.Client, channel string, cache *odds.RedisCache, log *zap.Logger) *RedisBroadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBroadcaster{rdb: rdb, channel: channel, cache: cache, log: log}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, s odds.Snapshot) error {
	if b.cache != nil {
		if err := b.cache.Set(ctx, s); err != nil {
			b.log.Warn("odds cache set failed", zap.String("game_id", s.GameID), zap.Error(err))
		}
	}
	payload, err := json.Marshal(s.Event())
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

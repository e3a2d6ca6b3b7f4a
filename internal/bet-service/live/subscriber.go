package live

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/huskybids/pkg/contracts/events"
)

// Sink receives decoded odds updates. *Hub is the production sink.
type Sink interface {
	Publish(u events.OddsUpdate)
}

// Subscribe forwards odds updates from the Redis channel to sink until ctx
// is done.
func Subscribe(ctx context.Context, rdb *redis.Client, channel string, sink Sink, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var u events.OddsUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
				log.Warn("odds subscriber decode failed", zap.Error(err))
				continue
			}
			sink.Publish(u)
		}
	}
}

package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/shared/kafka"
	"github.com/radieske/huskybids/pkg/contracts/events"
)

// KafkaPublisher writes feed game updates keyed by game id, so all updates of
// a game are consumed in order.
type KafkaPublisher struct {
	writer kafka.MessageWriter
	log    *zap.Logger
}

func NewKafkaPublisher(w kafka.MessageWriter, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, u events.GameUpdate) error {
	if err := kafka.WriteJSON(ctx, p.writer, u.GameID, u); err != nil {
		p.log.Error("failed to publish game update", zap.String("game_id", u.GameID), zap.Error(err))
		return err
	}
	p.log.Debug("published game update", zap.String("game_id", u.GameID), zap.String("status", u.Status))
	return nil
}

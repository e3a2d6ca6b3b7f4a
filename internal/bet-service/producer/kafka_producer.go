package producer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/shared/kafka"
	"github.com/radieske/huskybids/pkg/contracts/events"
)

// KafkaPublisher writes bet lifecycle events, keyed by game so that one
// game's events stay ordered on a partition.
type KafkaPublisher struct {
	placed  kafka.MessageWriter
	settled kafka.MessageWriter
	log     *zap.Logger
	now     func() time.Time
}

func NewKafkaPublisher(placed, settled kafka.MessageWriter, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{placed: placed, settled: settled, log: log, now: time.Now}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	if p.placed == nil {
		return errors.New("bet_placed writer not configured")
	}
	if e.TsUnixMs == 0 {
		e.TsUnixMs = p.now().UnixMilli()
	}
	if err := kafka.WriteJSON(ctx, p.placed, e.GameID, e); err != nil {
		p.log.Error("failed to publish bet placed", zap.String("bet_id", e.BetID), zap.Error(err))
		return err
	}
	p.log.Debug("published bet placed", zap.String("bet_id", e.BetID))
	return nil
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	if p.settled == nil {
		return errors.New("bet_settled writer not configured")
	}
	if e.Ts.IsZero() {
		e.Ts = p.now().UTC()
	}
	if err := kafka.WriteJSON(ctx, p.settled, e.GameID, e); err != nil {
		p.log.Error("failed to publish bet settled", zap.String("bet_id", e.BetID), zap.Error(err))
		return err
	}
	p.log.Debug("published bet settled", zap.String("bet_id", e.BetID), zap.String("status", e.Status))
	return nil
}

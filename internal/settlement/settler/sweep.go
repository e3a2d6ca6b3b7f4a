package settler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run sweeps for settleable and refundable games every interval until ctx
// is done. A sweep runs immediately on start so games finished while the
// worker was down are picked up.
func (s *Settler) Run(ctx context.Context) error {
	s.log.Info("settlement sweep started", zap.Duration("interval", s.interval))
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("settlement sweep stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Settler) sweep(ctx context.Context) {
	sum, err := s.SettleAllCompletedGames(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("settlement sweep failed", zap.Error(err))
		}
		return
	}
	if sum.GamesProcessed > 0 || len(sum.Errors) > 0 {
		s.log.Info("settlement sweep",
			zap.Int("games", sum.GamesProcessed),
			zap.Int("skipped", sum.GamesSkipped),
			zap.Int("bets", sum.Settled),
			zap.Int64("payout", sum.TotalPayout),
			zap.Int("errors", len(sum.Errors)),
		)
	}

	ref, err := s.RefundVoidedGames(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("refund sweep failed", zap.Error(err))
		}
		return
	}
	if ref.Games > 0 || len(ref.Errors) > 0 {
		s.log.Info("refund sweep",
			zap.Int("games", ref.Games),
			zap.Int("bets", ref.Refunded),
			zap.Int64("biscuits", ref.TotalRefunded),
			zap.Int("errors", len(ref.Errors)),
		)
	}
}

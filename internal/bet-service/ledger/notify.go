package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/bet-service/odds"
	"github.com/radieske/huskybids/pkg/contracts/events"
	"github.com/radieske/huskybids/pkg/models"
)

// Post-commit side effects. Failures are logged and never change the
// committed result.

func (l *Ledger) afterPlacement(ctx context.Context, p Placement) {
	if l.publisher != nil {
		err := l.publisher.PublishBetPlaced(ctx, events.BetPlaced{
			BetID:           p.Bet.ID,
			UserID:          p.Bet.UserID,
			GameID:          p.Bet.GameID,
			PredictedWinner: string(p.Bet.PredictedWinner),
			BetAmount:       p.Bet.BetAmount,
			Odds:            p.Bet.Odds,
			PotentialWin:    p.Bet.PotentialWin,
			NewBalance:      p.User.Biscuits,
			TsUnixMs:        p.Bet.PlacedAt.UnixMilli(),
		})
		if err != nil {
			l.log.Warn("publish bet_placed failed", zap.String("bet_id", p.Bet.ID), zap.Error(err))
		}
	}
	l.broadcast(ctx, p.Game)
	l.invalidate(ctx)
}

func (l *Ledger) afterRelease(ctx context.Context, g models.Game, bets []models.Bet) {
	if l.publisher != nil {
		for _, b := range bets {
			err := l.publisher.PublishBetSettled(ctx, events.BetSettled{
				BetID:     b.ID,
				UserID:    b.UserID,
				GameID:    b.GameID,
				Status:    string(b.Status),
				BetAmount: b.BetAmount,
				ActualWin: b.ActualWin,
				Ts:        settledAt(b),
			})
			if err != nil {
				l.log.Warn("publish bet_settled failed", zap.String("bet_id", b.ID), zap.Error(err))
			}
		}
	}
	l.broadcast(ctx, g)
	l.invalidate(ctx)
}

func (l *Ledger) broadcast(ctx context.Context, g models.Game) {
	if l.broadcaster == nil {
		return
	}
	if err := l.broadcaster.Broadcast(ctx, odds.NewSnapshot(g, l.now())); err != nil {
		l.log.Warn("odds broadcast failed", zap.String("game_id", g.ID), zap.Error(err))
	}
}

func (l *Ledger) invalidate(ctx context.Context) {
	if l.invalidator == nil {
		return
	}
	if err := l.invalidator.Invalidate(ctx); err != nil {
		l.log.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

func settledAt(b models.Bet) time.Time {
	if b.SettledAt != nil {
		return *b.SettledAt
	}
	return b.PlacedAt
}

package ledger

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/models"
)

// CancelBet voids a pending bet of userID while its game is still open for
// betting, returning the stake and removing it from the game aggregates.
func (l *Ledger) CancelBet(ctx context.Context, betID, userID string) (Placement, error) {
	// Read the game id first so locks are taken game before bet.
	probe, err := l.store.GetBet(ctx, betID)
	if err != nil {
		return Placement{}, err
	}
	if probe.UserID != userID {
		return Placement{}, models.ErrBetNotFound
	}

	var out Placement
	err = l.store.InTx(ctx, func(tx store.Tx) error {
		game, err := tx.GameForUpdate(ctx, probe.GameID)
		if err != nil {
			return err
		}
		bet, err := tx.BetForUpdate(ctx, betID)
		if err != nil {
			return err
		}
		if bet.Status != models.BetPending {
			return models.ErrBetNotPending
		}
		if err := bettingOpen(game, l.now()); err != nil {
			return err
		}

		bet, ok, err := tx.TransitionBet(ctx, bet.ID, models.BetCancelled, 0, l.now())
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrBetNotPending
		}
		user, err := tx.ApplyUserDelta(ctx, bet.UserID, models.UserDelta{
			Biscuits:    bet.BetAmount,
			TotalBets:   -1,
			PendingBets: -1,
		})
		if err != nil {
			return err
		}
		game, err = tx.ApplyGameDelta(ctx, game.ID, models.StakeDelta(bet.PredictedWinner, -1, -bet.BetAmount))
		if err != nil {
			return err
		}
		out = Placement{Bet: bet, User: user, Game: game}
		return nil
	})
	if err != nil {
		return Placement{}, err
	}

	l.log.Info("bet cancelled", zap.String("bet_id", betID), zap.String("user_id", userID))
	l.metrics.Cancelled()
	l.afterRelease(ctx, out.Game, []models.Bet{out.Bet})
	return out, nil
}

// RefundResult summarizes RefundGame.
type RefundResult struct {
	GameID        string     `json:"gameId"`
	Refunded      int        `json:"refunded"`
	TotalRefunded int64      `json:"totalRefunded"`
	Errors        []BetError `json:"errors,omitempty"`
}

// BetError is a failure on a single bet that did not stop the batch.
type BetError struct {
	BetID  string `json:"betId"`
	UserID string `json:"userId"`
	Error  string `json:"error"`
}

// RefundGame returns the stake of every pending bet on a cancelled or
// postponed game. Each bet is refunded in its own transaction behind the
// pending guard, so the call can be repeated safely.
func (l *Ledger) RefundGame(ctx context.Context, gameID string) (RefundResult, error) {
	game, err := l.store.GetGame(ctx, gameID)
	if err != nil {
		return RefundResult{}, err
	}
	if !game.Status.Voided() {
		return RefundResult{}, &models.GameStateError{GameID: gameID, Status: game.Status, Reason: "only cancelled or postponed games can be refunded"}
	}

	pending, err := l.store.ListBets(ctx, store.BetFilter{GameID: gameID, Status: models.BetPending})
	if err != nil {
		return RefundResult{}, err
	}

	res := RefundResult{GameID: gameID}
	var refunded []models.Bet
	for _, b := range pending {
		bet, err := l.refundBet(ctx, gameID, b.ID)
		if errors.Is(err, errSkipped) {
			continue
		}
		if err != nil {
			l.log.Warn("refund bet failed", zap.String("bet_id", b.ID), zap.Error(err))
			res.Errors = append(res.Errors, BetError{BetID: b.ID, UserID: b.UserID, Error: err.Error()})
			continue
		}
		res.Refunded++
		res.TotalRefunded += bet.BetAmount
		refunded = append(refunded, bet)
		l.metrics.Settled(string(models.BetRefunded), bet.BetAmount)
	}

	if len(refunded) > 0 {
		if g, err := l.store.GetGame(ctx, gameID); err == nil {
			game = g
		}
		l.afterRelease(ctx, game, refunded)
	}
	l.log.Info("game refunded",
		zap.String("game_id", gameID),
		zap.Int("refunded", res.Refunded),
		zap.Int64("biscuits", res.TotalRefunded),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

var errSkipped = errors.New("bet already settled")

func (l *Ledger) refundBet(ctx context.Context, gameID, betID string) (models.Bet, error) {
	var out models.Bet
	err := l.retry.Do(ctx, func(ctx context.Context) error {
		return l.store.InTx(ctx, func(tx store.Tx) error {
			if _, err := tx.GameForUpdate(ctx, gameID); err != nil {
				return err
			}
			bet, ok, err := tx.TransitionBet(ctx, betID, models.BetRefunded, 0, l.now())
			if err != nil {
				return err
			}
			if !ok {
				return errSkipped
			}
			if _, err := tx.ApplyUserDelta(ctx, bet.UserID, models.UserDelta{Biscuits: bet.BetAmount, PendingBets: -1}); err != nil {
				return err
			}
			if _, err := tx.ApplyGameDelta(ctx, gameID, models.StakeDelta(bet.PredictedWinner, -1, -bet.BetAmount)); err != nil {
				return err
			}
			out = bet
			return nil
		})
	})
	return out, err
}

// Package settler pays out pending bets on completed games.
//
// Each bet is settled in its own transaction whose first statement is the
// guarded status transition, so concurrent or repeated runs pay a bet at
// most once and a failure on one bet never rolls back another.
package settler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/bet-service/ledger"
	"github.com/radieske/huskybids/internal/shared/metrics"
	"github.com/radieske/huskybids/internal/shared/retry"
	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/contracts/events"
	"github.com/radieske/huskybids/pkg/models"
)

// Publisher receives one event per settled bet.
type Publisher interface {
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
}

// Refunder returns the stakes of a voided game.
type Refunder interface {
	RefundGame(ctx context.Context, gameID string) (ledger.RefundResult, error)
}

// Invalidator drops derived statistics after balances move.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Settler struct {
	store       store.Store
	log         *zap.Logger
	now         func() time.Time
	retry       retry.Policy
	publisher   Publisher
	invalidator Invalidator
	refunder    Refunder
	metrics     *metrics.Betting
	interval    time.Duration
}

type Option func(*Settler)

func WithLogger(l *zap.Logger) Option { return func(s *Settler) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Settler) { s.now = now } }
func WithPublisher(p Publisher) Option { return func(s *Settler) { s.publisher = p } }
func WithInvalidator(i Invalidator) Option { return func(s *Settler) { s.invalidator = i } }
func WithMetrics(m *metrics.Betting) Option { return func(s *Settler) { s.metrics = m } }

// WithRefunder lets the sweep refund cancelled and postponed games.
func WithRefunder(r Refunder) Option { return func(s *Settler) { s.refunder = r } }
func WithInterval(d time.Duration) Option { return func(s *Settler) { s.interval = d } }
func WithRetryPolicy(p retry.Policy) Option { return func(s *Settler) { s.retry = p } }

func New(st store.Store, opts ...Option) *Settler {
	s := &Settler{
		store:    st,
		log:      zap.NewNop(),
		now:      time.Now,
		retry:    retry.NewPolicy(3, 25*time.Millisecond, func(err error) bool { return errors.Is(err, models.ErrConcurrencyConflict) }),
		interval: time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Result summarizes SettleGame.
type Result struct {
	GameID      string     `json:"gameId"`
	Winner      string     `json:"winner"`
	Settled     int        `json:"settled"`
	Won         int        `json:"won"`
	Lost        int        `json:"lost"`
	TotalPayout int64      `json:"totalPayout"`
	Errors      []BetError `json:"errors,omitempty"`
}

type BetError struct {
	BetID  string `json:"betId"`
	UserID string `json:"userId"`
	Error  string `json:"error"`
}

// Summary aggregates a SettleAllCompletedGames run.
type Summary struct {
	GamesProcessed int         `json:"gamesProcessed"`
	GamesSkipped   int         `json:"gamesSkipped"`
	Settled        int         `json:"settled"`
	Won            int         `json:"won"`
	Lost           int         `json:"lost"`
	TotalPayout    int64       `json:"totalPayout"`
	Results        []Result    `json:"results"`
	Errors         []GameError `json:"errors,omitempty"`
}

type GameError struct {
	GameID string `json:"gameId"`
	Error  string `json:"error"`
}

var errAlreadySettled = errors.New("bet already settled")

// SettleGame settles every pending bet on a completed game with a home or
// away winner. Ties are rejected with models.ErrTieGame.
func (s *Settler) SettleGame(ctx context.Context, gameID string) (Result, error) {
	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return Result{}, err
	}
	if game.Status != models.GameCompleted {
		return Result{}, &models.GameStateError{GameID: gameID, Status: game.Status, Reason: "game is not completed"}
	}
	switch game.Winner {
	case models.SideHome, models.SideAway:
	case models.SideTie:
		return Result{}, fmt.Errorf("game %s: %w", gameID, models.ErrTieGame)
	default:
		return Result{}, &models.GameStateError{GameID: gameID, Status: game.Status, Reason: "game has no winner"}
	}

	pending, err := s.store.ListBets(ctx, store.BetFilter{GameID: gameID, Status: models.BetPending})
	if err != nil {
		return Result{}, err
	}

	res := Result{GameID: gameID, Winner: string(game.Winner)}
	for _, b := range pending {
		settled, err := s.settleBet(ctx, b, game.Winner)
		if errors.Is(err, errAlreadySettled) {
			continue
		}
		if err != nil {
			s.metrics.SettlementError()
			s.log.Warn("settle bet failed",
				zap.String("game_id", gameID),
				zap.String("bet_id", b.ID),
				zap.Error(err),
			)
			res.Errors = append(res.Errors, BetError{BetID: b.ID, UserID: b.UserID, Error: err.Error()})
			continue
		}

		res.Settled++
		if settled.Status == models.BetWon {
			res.Won++
			res.TotalPayout += settled.ActualWin
		} else {
			res.Lost++
		}
		s.metrics.Settled(string(settled.Status), settled.ActualWin)
		s.publish(ctx, settled)
	}

	if len(res.Errors) == 0 {
		if err := s.markSettled(ctx, gameID); err != nil {
			s.log.Warn("mark game settled failed", zap.String("game_id", gameID), zap.Error(err))
		}
	}
	if res.Settled > 0 {
		s.invalidate(ctx)
	}

	s.log.Info("game settled",
		zap.String("game_id", gameID),
		zap.String("winner", res.Winner),
		zap.Int("settled", res.Settled),
		zap.Int("won", res.Won),
		zap.Int("lost", res.Lost),
		zap.Int64("payout", res.TotalPayout),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

// settleBet moves one bet out of pending and credits the bettor in a single
// transaction.
func (s *Settler) settleBet(ctx context.Context, b models.Bet, winner models.Side) (models.Bet, error) {
	status, win := models.BetLost, int64(0)
	if b.PredictedWinner == winner {
		status, win = models.BetWon, b.PotentialWin
	}

	var out models.Bet
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			bet, ok, err := tx.TransitionBet(ctx, b.ID, status, win, s.now())
			if err != nil {
				return err
			}
			if !ok {
				return errAlreadySettled
			}

			d := models.UserDelta{PendingBets: -1}
			if status == models.BetWon {
				d.Biscuits = bet.ActualWin
				d.WinningBets = 1
				d.TotalBiscuitsWon = bet.ActualWin
			} else {
				d.LosingBets = 1
				d.TotalBiscuitsLost = bet.BetAmount
			}
			if _, err := tx.ApplyUserDelta(ctx, bet.UserID, d); err != nil {
				return err
			}
			out = bet
			return nil
		})
	})
	return out, err
}

// markSettled stamps the game once no pending bets remain. The check and the
// stamp share the game lock so a bet cannot slip in between.
func (s *Settler) markSettled(ctx context.Context, gameID string) error {
	return s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GameForUpdate(ctx, gameID); err != nil {
			return err
		}
		left, err := tx.PendingBets(ctx, gameID)
		if err != nil {
			return err
		}
		if len(left) > 0 {
			return nil
		}
		return tx.MarkGameSettled(ctx, gameID, s.now())
	})
}

// SettleAllCompletedGames settles every completed game that still has
// pending bets. A failing game is recorded and the run continues.
func (s *Settler) SettleAllCompletedGames(ctx context.Context) (Summary, error) {
	games, err := s.store.SettleableGames(ctx)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Results: []Result{}}
	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := s.SettleGame(ctx, g.ID)
		if err != nil {
			sum.GamesSkipped++
			sum.Errors = append(sum.Errors, GameError{GameID: g.ID, Error: err.Error()})
			continue
		}
		if res.Settled == 0 && len(res.Errors) == 0 {
			sum.GamesSkipped++
			continue
		}
		sum.GamesProcessed++
		sum.Settled += res.Settled
		sum.Won += res.Won
		sum.Lost += res.Lost
		sum.TotalPayout += res.TotalPayout
		sum.Results = append(sum.Results, res)
	}
	return sum, nil
}

func (s *Settler) publish(ctx context.Context, b models.Bet) {
	if s.publisher == nil {
		return
	}
	ts := s.now()
	if b.SettledAt != nil {
		ts = *b.SettledAt
	}
	err := s.publisher.PublishBetSettled(ctx, events.BetSettled{
		BetID:     b.ID,
		UserID:    b.UserID,
		GameID:    b.GameID,
		Status:    string(b.Status),
		BetAmount: b.BetAmount,
		ActualWin: b.ActualWin,
		Ts:        ts,
	})
	if err != nil {
		s.log.Warn("publish bet_settled failed", zap.String("bet_id", b.ID), zap.Error(err))
	}
}

func (s *Settler) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.log.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// RefundSweep summarizes RefundVoidedGames.
type RefundSweep struct {
	Games         int         `json:"games"`
	Refunded      int         `json:"refunded"`
	TotalRefunded int64       `json:"totalRefunded"`
	Errors        []GameError `json:"errors,omitempty"`
}

// RefundVoidedGames refunds every cancelled or postponed game that still has
// pending bets. It does nothing without a Refunder.
func (s *Settler) RefundVoidedGames(ctx context.Context) (RefundSweep, error) {
	var sum RefundSweep
	if s.refunder == nil {
		return sum, nil
	}
	games, err := s.store.RefundableGames(ctx)
	if err != nil {
		return sum, err
	}
	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := s.refunder.RefundGame(ctx, g.ID)
		if err != nil {
			sum.Errors = append(sum.Errors, GameError{GameID: g.ID, Error: err.Error()})
			continue
		}
		for _, be := range res.Errors {
			sum.Errors = append(sum.Errors, GameError{GameID: g.ID, Error: be.BetID + ": " + be.Error})
		}
		sum.Games++
		sum.Refunded += res.Refunded
		sum.TotalRefunded += res.TotalRefunded
	}
	return sum, nil
}

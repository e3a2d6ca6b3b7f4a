// Package ledger places, cancels and refunds bets. Every balance movement
// happens in one store transaction together with the bet row and the game
// aggregates it affects.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/bet-service/odds"
	"github.com/radieske/huskybids/internal/bet-service/validation"
	"github.com/radieske/huskybids/internal/shared/metrics"
	"github.com/radieske/huskybids/internal/shared/retry"
	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/contracts/events"
	"github.com/radieske/huskybids/pkg/models"
)

const (
	DefaultStartingBiscuits int64 = 1000
	maxPlaceAttempts              = 3
)

// EventPublisher receives bet events after their transaction commits.
type EventPublisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
}

// OddsBroadcaster pushes a game's fresh odds to live subscribers.
type OddsBroadcaster interface {
	Broadcast(ctx context.Context, s odds.Snapshot) error
}

// CacheInvalidator drops derived statistics.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type Ledger struct {
	store            store.Store
	log              *zap.Logger
	limits           validation.Limits
	startingBiscuits int64
	now              func() time.Time
	retry            retry.Policy

	publisher   EventPublisher
	broadcaster OddsBroadcaster
	invalidator CacheInvalidator
	metrics     *metrics.Betting
}

type Option func(*Ledger)

func WithLogger(l *zap.Logger) Option { return func(x *Ledger) { x.log = l } }
func WithLimits(l validation.Limits) Option { return func(x *Ledger) { x.limits = l } }
func WithStartingBiscuits(n int64) Option { return func(x *Ledger) { x.startingBiscuits = n } }
func WithClock(now func() time.Time) Option { return func(x *Ledger) { x.now = now } }
func WithPublisher(p EventPublisher) Option { return func(x *Ledger) { x.publisher = p } }
func WithBroadcaster(b OddsBroadcaster) Option { return func(x *Ledger) { x.broadcaster = b } }
func WithCacheInvalidator(c CacheInvalidator) Option { return func(x *Ledger) { x.invalidator = c } }
func WithMetrics(m *metrics.Betting) Option { return func(x *Ledger) { x.metrics = m } }

// WithRetryPolicy overrides the backoff used by PlaceBetWithRetry.
func WithRetryPolicy(p retry.Policy) Option { return func(x *Ledger) { x.retry = p } }

func New(st store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:            st,
		log:              zap.NewNop(),
		limits:           validation.DefaultLimits(),
		startingBiscuits: DefaultStartingBiscuits,
		now:              time.Now,
		retry:            retry.NewPolicy(maxPlaceAttempts, 50*time.Millisecond, IsConflict),
	}
	for _, o := range opts {
		o(l)
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	return l
}

// IsConflict reports whether err is a retryable serialization conflict.
func IsConflict(err error) bool { return errors.Is(err, models.ErrConcurrencyConflict) }

type PlaceBetInput struct {
	UserID          string
	GameID          string
	BetAmount       float64
	PredictedWinner string
}

// Placement is the committed state after a bet is placed or cancelled.
type Placement struct {
	Bet  models.Bet  `json:"bet"`
	User models.User `json:"user"`
	Game models.Game `json:"game"`
}

// PlaceBet debits the stake and records the bet in one transaction. The odds
// are derived from the game aggregates read under lock, so later bets never
// change the odds of earlier ones.
func (l *Ledger) PlaceBet(ctx context.Context, in PlaceBetInput) (Placement, error) {
	start := l.now()
	side := models.Side(strings.ToLower(strings.TrimSpace(in.PredictedWinner)))

	var out Placement
	err := l.store.InTx(ctx, func(tx store.Tx) error {
		game, err := tx.GameForUpdate(ctx, in.GameID)
		if err != nil {
			return err
		}
		now := l.now()
		if err := bettingOpen(game, now); err != nil {
			return err
		}
		if !side.Valid() {
			return models.ErrInvalidPrediction
		}

		user, err := tx.UserForUpdate(ctx, in.UserID)
		if err != nil {
			return err
		}
		if err := validation.Validate(in.BetAmount, user.Biscuits, l.limits).Err(); err != nil {
			return err
		}

		amount := int64(in.BetAmount)
		betOdds := odds.ForGame(game).For(side)
		bet := models.Bet{
			ID:              uuid.NewString(),
			UserID:          user.ID,
			GameID:          game.ID,
			BetAmount:       amount,
			PredictedWinner: side,
			Odds:            betOdds,
			PotentialWin:    odds.Payout(amount, betOdds),
			Status:          models.BetPending,
			PlacedAt:        now,
		}

		user, err = tx.ApplyUserDelta(ctx, user.ID, models.UserDelta{Biscuits: -amount, TotalBets: 1, PendingBets: 1})
		if err != nil {
			return err
		}
		if err := tx.InsertBet(ctx, bet); err != nil {
			return err
		}
		game, err = tx.ApplyGameDelta(ctx, game.ID, models.StakeDelta(side, 1, amount))
		if err != nil {
			return err
		}

		out = Placement{Bet: bet, User: user, Game: game}
		return nil
	})
	if err != nil {
		l.metrics.Rejected(Reason(err))
		if IsConflict(err) {
			l.metrics.Conflict()
		}
		return Placement{}, err
	}

	l.metrics.Placed(l.now().Sub(start))
	l.log.Info("bet placed",
		zap.String("bet_id", out.Bet.ID),
		zap.String("user_id", out.User.ID),
		zap.String("game_id", out.Game.ID),
		zap.Int64("amount", out.Bet.BetAmount),
		zap.Float64("odds", out.Bet.Odds),
	)
	l.afterPlacement(ctx, out)
	return out, nil
}

// PlaceBetWithRetry retries PlaceBet on serialization conflicts. Other
// failures are returned as is.
func (l *Ledger) PlaceBetWithRetry(ctx context.Context, in PlaceBetInput) (Placement, error) {
	var out Placement
	err := l.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.PlaceBet(ctx, in)
		return err
	})
	if err != nil {
		return Placement{}, err
	}
	return out, nil
}

// bettingOpen checks the game state read under lock.
func bettingOpen(g models.Game, now time.Time) error {
	switch {
	case g.Status != models.GameScheduled:
		return fmt.Errorf("%w: game is %s", models.ErrBettingClosed, g.Status)
	case !now.Before(g.StartTime):
		return fmt.Errorf("%w: game has started", models.ErrBettingClosed)
	case g.BettingClosesAt != nil && !now.Before(*g.BettingClosesAt):
		return fmt.Errorf("%w: betting window has closed", models.ErrBettingClosed)
	case !g.BettingEnabled:
		return fmt.Errorf("%w: betting is disabled", models.ErrBettingClosed)
	}
	return nil
}

// Reason maps a placement error to a short metric label.
func Reason(err error) string {
	var (
		ve *models.ValidationError
		pe *models.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.Is(err, models.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, models.ErrBettingClosed):
		return "betting_closed"
	case errors.Is(err, models.ErrInvalidPrediction):
		return "invalid_prediction"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case IsConflict(err):
		return "conflict"
	case errors.As(err, &pe):
		return "persistence"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "other"
}

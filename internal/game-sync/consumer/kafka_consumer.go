// Package consumer applies feed game updates to the store and kicks off
// settlement or refunds when a game reaches a final state.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/bet-service/ledger"
	"github.com/radieske/huskybids/internal/settlement/settler"
	"github.com/radieske/huskybids/internal/shared/kafka"
	"github.com/radieske/huskybids/internal/shared/retry"
	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/contracts/events"
	"github.com/radieske/huskybids/pkg/models"
)

type Settler interface {
	SettleGame(ctx context.Context, gameID string) (settler.Result, error)
}

type Refunder interface {
	RefundGame(ctx context.Context, gameID string) (ledger.RefundResult, error)
}

// Processor consumes game_updates. Messages that cannot be decoded or
// applied are copied to the DLQ and committed so the partition keeps moving.
type Processor struct {
	Log      *zap.Logger
	Reader   kafka.MessageReader
	DLQ      kafka.MessageWriter
	Store    store.Store
	Settler  Settler
	Refunder Refunder
	Retry    retry.Policy

	OnConsumed func()       // metrics
	OnApplied  func()       // metrics
	OnError    func(string) // metrics per phase
}

// errIgnored marks an update that was valid but must not change the game.
var errIgnored = errors.New("update ignored")

func (p *Processor) defaults() {
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	if p.Retry.MaxAttempts == 0 {
		p.Retry = retry.NewPolicy(3, 200*time.Millisecond, func(err error) bool {
			var pe *models.PersistenceError
			return errors.Is(err, models.ErrConcurrencyConflict) || errors.As(err, &pe)
		})
	}
}

func (p *Processor) Run(ctx context.Context) error {
	p.defaults()
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.fail("read")
			if err := sleep(ctx, 500*time.Millisecond); err != nil {
				return err
			}
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		p.Handle(ctx, m)

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.fail("commit")
		}
	}
}

// Handle processes one message. It never returns an error: failures end up
// in the DLQ or the log.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	p.defaults()
	var ev events.GameUpdate
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid game update", zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m, "decode", err)
		return
	}
	if err := ev.Validate(); err != nil {
		p.Log.Warn("invalid game update", zap.String("game_id", ev.GameID), zap.Error(err))
		p.fail("validate")
		p.deadLetter(ctx, m, "validate", err)
		return
	}

	var game models.Game
	err := p.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		game, err = p.apply(ctx, ev)
		return err
	})
	switch {
	case errors.Is(err, errIgnored):
		p.Log.Info("game update ignored", zap.String("game_id", ev.GameID), zap.String("status", ev.Status))
		return
	case err != nil:
		p.Log.Error("game upsert failed", zap.String("game_id", ev.GameID), zap.Error(err))
		p.fail("db_upsert")
		p.deadLetter(ctx, m, "db_upsert", err)
		return
	}
	if p.OnApplied != nil {
		p.OnApplied()
	}
	p.Log.Debug("game updated", zap.String("game_id", game.ID), zap.String("status", string(game.Status)))

	p.finalize(ctx, game)
}

// apply upserts the game from ev. Aggregates are never touched and a settled
// game is frozen. Once final, a game only accepts updates that keep its
// outcome (see locked).
func (p *Processor) apply(ctx context.Context, ev events.GameUpdate) (models.Game, error) {
	var out models.Game
	err := p.Store.InTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GameForUpdate(ctx, ev.GameID)
		exists := err == nil
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
		if exists && cur.SettledAt != nil {
			return errIgnored
		}
		status := models.GameStatus(ev.Status)
		var winner models.Side
		if status == models.GameCompleted {
			winner = models.Side(strings.ToLower(ev.Winner))
		}
		if exists && locked(cur, status, winner) {
			return errIgnored
		}

		g := models.Game{
			ID:              ev.GameID,
			HomeTeam:        ev.HomeTeam,
			AwayTeam:        ev.AwayTeam,
			StartTime:       ev.StartTime.UTC(),
			BettingClosesAt: ev.BettingClosesAt,
			BettingEnabled:  true,
			Status:          status,
			HomeScore:       ev.HomeScore,
			AwayScore:       ev.AwayScore,
		}
		if exists {
			g.BettingEnabled = cur.BettingEnabled
		}
		g.Winner = winner
		out, err = tx.UpsertGame(ctx, g)
		return err
	})
	return out, err
}

// finalize settles or refunds a game that reached a final state. Failures
// are left to the periodic sweep, which covers both settlement and refunds.
func (p *Processor) finalize(ctx context.Context, g models.Game) {
	switch {
	case g.Status == models.GameCompleted && g.Winner == models.SideTie:
		p.Log.Warn("tie game needs manual settlement", zap.String("game_id", g.ID))
	case g.Status == models.GameCompleted && p.Settler != nil:
		res, err := p.Settler.SettleGame(ctx, g.ID)
		if err != nil {
			p.Log.Error("settle game failed", zap.String("game_id", g.ID), zap.Error(err))
			p.fail("settle")
			return
		}
		p.Log.Info("game settled from feed",
			zap.String("game_id", g.ID),
			zap.Int("settled", res.Settled),
			zap.Int64("payout", res.TotalPayout),
		)
	case g.Status.Voided() && p.Refunder != nil:
		res, err := p.Refunder.RefundGame(ctx, g.ID)
		if err != nil {
			p.Log.Error("refund game failed", zap.String("game_id", g.ID), zap.Error(err))
			p.fail("refund")
			return
		}
		p.Log.Info("game refunded from feed", zap.String("game_id", g.ID), zap.Int("refunded", res.Refunded))
	}
}

func final(s models.GameStatus) bool { return s == models.GameCompleted || s.Voided() }

// locked reports whether an update to status/winner would rewrite the
// outcome of cur. A decided game keeps its winner so bets already settled
// against it stay consistent; a resend of the same result is let through so
// settlement can be retried. A tie may still be decided, and a voided game
// may only move between cancelled and postponed.
func locked(cur models.Game, status models.GameStatus, winner models.Side) bool {
	if !final(cur.Status) {
		return false
	}
	if !final(status) {
		return true
	}
	switch {
	case cur.Status == models.GameCompleted && cur.Winner != models.SideTie:
		return status != models.GameCompleted || winner != cur.Winner
	case cur.Status == models.GameCompleted:
		return status != models.GameCompleted
	default:
		return status == models.GameCompleted
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, phase string, cause error) {
	if p.DLQ == nil {
		return
	}
	err := p.DLQ.WriteMessages(ctx, kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: []kafka.Header{
			{Key: "error_phase", Value: []byte(phase)},
			{Key: "error", Value: []byte(cause.Error())},
			{Key: "source_offset", Value: []byte(fmt.Sprint(m.Offset))},
		},
		Time: time.Now(),
	})
	if err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(phase string) {
	if p.OnError != nil {
		p.OnError(phase)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

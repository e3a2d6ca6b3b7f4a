// Package stats derives per-user statistics and leaderboards from ledger
// state. Results may be served from a cache whose keys embed a generation
// number; bumping the generation invalidates everything at once.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/models"
)

const recentBets = 5

// Cache stores computed results under generation-scoped keys.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Generation(ctx context.Context) (int64, error)
	Invalidate(ctx context.Context) error
}

type Aggregator struct {
	reader store.Reader
	cache  Cache
	log    *zap.Logger
	now    func() time.Time
}

type Option func(*Aggregator)

func WithCache(c Cache) Option { return func(a *Aggregator) { a.cache = c } }
func WithLogger(l *zap.Logger) Option { return func(a *Aggregator) { a.log = l } }
func WithClock(now func() time.Time) Option { return func(a *Aggregator) { a.now = now } }

func New(r store.Reader, opts ...Option) *Aggregator {
	a := &Aggregator{reader: r, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	return a
}

// Invalidate bumps the cache generation. It is a no-op without a cache.
func (a *Aggregator) Invalidate(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Invalidate(ctx)
}

type UserStats struct {
	UserID              string       `json:"userId"`
	Username            string       `json:"username"`
	Biscuits            int64        `json:"biscuits"`
	TotalBets           int64        `json:"totalBets"`
	WinningBets         int64        `json:"winningBets"`
	LosingBets          int64        `json:"losingBets"`
	PendingBets         int64        `json:"pendingBets"`
	WinRate             float64      `json:"winRate"`
	TotalWagered        int64        `json:"totalWagered"`
	TotalBiscuitsWon    int64        `json:"totalBiscuitsWon"`
	TotalBiscuitsLost   int64        `json:"totalBiscuitsLost"`
	NetProfit           int64        `json:"netProfit"`
	ROI                 float64      `json:"roi"`
	PendingStake        int64        `json:"pendingStake"`
	PendingPotentialWin int64        `json:"pendingPotentialWin"`
	BiggestWin          int64        `json:"biggestWin"`
	LoginStreak         int          `json:"loginStreak"`
	Rank                int          `json:"rank"`
	RecentBets          []models.Bet `json:"recentBets"`
	ComputedAt          time.Time    `json:"computedAt"`
}

// UserStats returns the statistics of one user, ranking them by balance.
func (a *Aggregator) UserStats(ctx context.Context, userID string) (UserStats, error) {
	return cached(ctx, a, "user:"+userID, func() (UserStats, error) {
		u, err := a.reader.GetUser(ctx, userID)
		if err != nil {
			return UserStats{}, err
		}
		bets, err := a.reader.ListBets(ctx, store.BetFilter{UserID: userID})
		if err != nil {
			return UserStats{}, err
		}
		// Same ordering as the biscuits leaderboard, ties included.
		ranked, err := a.ranked(ctx, SortBiscuits, PeriodAll)
		if err != nil {
			return UserStats{}, err
		}
		s := computeUserStats(u, bets)
		for _, e := range ranked {
			if e.UserID == u.ID {
				s.Rank = e.Rank
				break
			}
		}
		s.ComputedAt = a.now().UTC()
		return s, nil
	})
}

func computeUserStats(u models.User, bets []models.Bet) UserStats {
	s := UserStats{
		UserID:            u.ID,
		Username:          u.Username,
		Biscuits:          u.Biscuits,
		TotalBets:         u.TotalBets,
		WinningBets:       u.WinningBets,
		LosingBets:        u.LosingBets,
		PendingBets:       u.PendingBets,
		TotalBiscuitsWon:  u.TotalBiscuitsWon,
		TotalBiscuitsLost: u.TotalBiscuitsLost,
		LoginStreak:       u.LoginStreak,
		RecentBets:        []models.Bet{},
	}

	t := tally(bets)
	s.WinRate = t.winRate()
	s.NetProfit = t.netProfit
	s.ROI = t.roi()
	s.TotalWagered = t.wagered
	s.PendingStake = t.pendingStake
	s.PendingPotentialWin = t.pendingPotential
	s.BiggestWin = t.biggestWin

	// bets arrive newest first
	if n := min(len(bets), recentBets); n > 0 {
		s.RecentBets = append(s.RecentBets, bets[:n]...)
	}
	return s
}

// totals accumulates the bet-derived metrics shared by stats and leaderboards.
type totals struct {
	bets             int64
	won              int64
	lost             int64
	wagered          int64
	settledWagered   int64
	netProfit        int64
	pendingStake     int64
	pendingPotential int64
	biggestWin       int64
}

func tally(bets []models.Bet) totals {
	var t totals
	for _, b := range bets {
		switch b.Status {
		case models.BetWon:
			profit := b.ActualWin - b.BetAmount
			t.won++
			t.netProfit += profit
			t.settledWagered += b.BetAmount
			t.biggestWin = max(t.biggestWin, profit)
		case models.BetLost:
			t.lost++
			t.netProfit -= b.BetAmount
			t.settledWagered += b.BetAmount
		case models.BetPending:
			t.pendingStake += b.BetAmount
			t.pendingPotential += b.PotentialWin
		default:
			continue
		}
		t.bets++
		t.wagered += b.BetAmount
	}
	return t
}

// winRate is the share of settled bets won, in percent.
func (t totals) winRate() float64 {
	settled := t.won + t.lost
	if settled == 0 {
		return 0
	}
	return percent(t.won, settled)
}

func (t totals) roi() float64 {
	if t.settledWagered == 0 {
		return 0
	}
	return percent(t.netProfit, t.settledWagered)
}

func percent(num, den int64) float64 {
	return decimal.NewFromInt(num).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(den)).
		Round(2).
		InexactFloat64()
}

// cached serves compute through the cache when one is configured. Any cache
// failure falls back to computing.
func cached[T any](ctx context.Context, a *Aggregator, key string, compute func() (T, error)) (T, error) {
	if a.cache == nil {
		return compute()
	}
	gen, err := a.cache.Generation(ctx)
	if err != nil {
		a.log.Debug("stats cache unavailable", zap.Error(err))
		return compute()
	}
	full := fmt.Sprintf("stats:%d:%s", gen, key)

	var v T
	if ok, err := a.cache.Get(ctx, full, &v); err == nil && ok {
		return v, nil
	} else if err != nil {
		a.log.Debug("stats cache get failed", zap.String("key", full), zap.Error(err))
	}

	v, err = compute()
	if err != nil {
		return v, err
	}
	if err := a.cache.Set(ctx, full, v); err != nil {
		a.log.Debug("stats cache set failed", zap.String("key", full), zap.Error(err))
	}
	return v, nil
}

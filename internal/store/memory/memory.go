// Package memory is an in-process store used by tests and the local demo.
// Transactions are serialized by one mutex and applied to a copy of the
// state that replaces the original only on commit.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/models"
)

type state struct {
	users map[string]models.User
	games map[string]models.Game
	bets  map[string]models.Bet
}

func (s state) clone() state {
	c := state{
		users: make(map[string]models.User, len(s.users)),
		games: make(map[string]models.Game, len(s.games)),
		bets:  make(map[string]models.Bet, len(s.bets)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.games {
		c.games[k] = v
	}
	for k, v := range s.bets {
		c.bets[k] = v
	}
	return c
}

// Store implements store.Store. Reader methods must not be called from
// inside an InTx callback.
type Store struct {
	mu  sync.RWMutex
	st  state
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		st: state{
			users: map[string]models.User{},
			games: map[string]models.Game{},
			bets:  map[string]models.Bet{},
		},
		now: time.Now,
	}
}

func (s *Store) InTx(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) GetUser(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.st.users[id]
	if !ok {
		return models.User{}, models.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) GetGame(_ context.Context, id string) (models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.st.games[id]
	if !ok {
		return models.Game{}, models.ErrGameNotFound
	}
	return g, nil
}

func (s *Store) GetBet(_ context.Context, id string) (models.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.st.bets[id]
	if !ok {
		return models.Bet{}, models.ErrBetNotFound
	}
	return b, nil
}

func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.st.users))
	for _, u := range s.st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListGames(_ context.Context, f store.GameFilter) ([]models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Game
	for _, g := range s.st.games {
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, g.Status) {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) ListBets(_ context.Context, f store.BetFilter) ([]models.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterBets(s.st.bets, f), nil
}

func filterBets(bets map[string]models.Bet, f store.BetFilter) []models.Bet {
	var out []models.Bet
	for _, b := range bets {
		switch {
		case f.UserID != "" && b.UserID != f.UserID,
			f.GameID != "" && b.GameID != f.GameID,
			f.Status != "" && b.Status != f.Status,
			f.Since != nil && b.PlacedAt.Before(*f.Since):
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].PlacedAt.After(out[j].PlacedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (s *Store) SettleableGames(_ context.Context) ([]models.Game, error) {
	return s.gamesWithPending(func(g models.Game) bool {
		return g.Status == models.GameCompleted && g.Winner.Valid()
	}), nil
}

func (s *Store) RefundableGames(_ context.Context) ([]models.Game, error) {
	return s.gamesWithPending(func(g models.Game) bool { return g.Status.Voided() }), nil
}

func (s *Store) gamesWithPending(match func(models.Game) bool) []models.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending := map[string]bool{}
	for _, b := range s.st.bets {
		if b.Status == models.BetPending {
			pending[b.GameID] = true
		}
	}
	var out []models.Game
	for _, g := range s.st.games {
		if pending[g.ID] && match(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

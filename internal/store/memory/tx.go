package memory

import (
	"context"
	"time"

	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/models"
)

type tx struct {
	st  state
	now func() time.Time
}

var _ store.Tx = (*tx)(nil)

func (t *tx) GameForUpdate(_ context.Context, id string) (models.Game, error) {
	g, ok := t.st.games[id]
	if !ok {
		return models.Game{}, models.ErrGameNotFound
	}
	return g, nil
}

func (t *tx) BetForUpdate(_ context.Context, id string) (models.Bet, error) {
	b, ok := t.st.bets[id]
	if !ok {
		return models.Bet{}, models.ErrBetNotFound
	}
	return b, nil
}

func (t *tx) UserForUpdate(_ context.Context, id string) (models.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return models.User{}, models.ErrUserNotFound
	}
	return u, nil
}

func (t *tx) PendingBets(_ context.Context, gameID string) ([]models.Bet, error) {
	return filterBets(t.st.bets, store.BetFilter{GameID: gameID, Status: models.BetPending}), nil
}

func (t *tx) InsertUser(_ context.Context, u models.User) (bool, error) {
	if _, ok := t.st.users[u.ID]; ok {
		return false, nil
	}
	now := t.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	t.st.users[u.ID] = u
	return true, nil
}

func (t *tx) TouchLogin(_ context.Context, userID string, streak int, at time.Time) error {
	u, ok := t.st.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	u.LoginStreak = streak
	u.LastLoginAt = &at
	u.UpdatedAt = t.now()
	t.st.users[userID] = u
	return nil
}

func (t *tx) ApplyUserDelta(_ context.Context, userID string, d models.UserDelta) (models.User, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return models.User{}, models.ErrUserNotFound
	}
	if u.Biscuits+d.Biscuits < 0 {
		return models.User{}, models.ErrInsufficientFunds
	}
	u.Biscuits += d.Biscuits
	u.TotalBets += d.TotalBets
	u.WinningBets += d.WinningBets
	u.LosingBets += d.LosingBets
	u.PendingBets += d.PendingBets
	u.TotalBiscuitsWon += d.TotalBiscuitsWon
	u.TotalBiscuitsLost += d.TotalBiscuitsLost
	u.UpdatedAt = t.now()
	t.st.users[userID] = u
	return u, nil
}

func (t *tx) UpsertGame(_ context.Context, g models.Game) (models.Game, error) {
	now := t.now()
	cur, ok := t.st.games[g.ID]
	if !ok {
		g.HomeBetCount, g.AwayBetCount, g.HomeBiscuits, g.AwayBiscuits = 0, 0, 0, 0
		g.SettledAt = nil
		if g.CreatedAt.IsZero() {
			g.CreatedAt = now
		}
		g.UpdatedAt = now
		t.st.games[g.ID] = g
		return g, nil
	}
	cur.HomeTeam = g.HomeTeam
	cur.AwayTeam = g.AwayTeam
	cur.StartTime = g.StartTime
	cur.BettingClosesAt = g.BettingClosesAt
	cur.BettingEnabled = g.BettingEnabled
	cur.Status = g.Status
	cur.Winner = g.Winner
	cur.HomeScore = g.HomeScore
	cur.AwayScore = g.AwayScore
	cur.UpdatedAt = now
	t.st.games[g.ID] = cur
	return cur, nil
}

func (t *tx) ApplyGameDelta(_ context.Context, gameID string, d models.GameDelta) (models.Game, error) {
	g, ok := t.st.games[gameID]
	if !ok {
		return models.Game{}, models.ErrGameNotFound
	}
	g.HomeBetCount += d.HomeBetCount
	g.AwayBetCount += d.AwayBetCount
	g.HomeBiscuits += d.HomeBiscuits
	g.AwayBiscuits += d.AwayBiscuits
	g.UpdatedAt = t.now()
	t.st.games[gameID] = g
	return g, nil
}

func (t *tx) MarkGameSettled(_ context.Context, gameID string, at time.Time) error {
	g, ok := t.st.games[gameID]
	if !ok {
		return models.ErrGameNotFound
	}
	if g.SettledAt == nil {
		g.SettledAt = &at
		g.UpdatedAt = t.now()
		t.st.games[gameID] = g
	}
	return nil
}

func (t *tx) InsertBet(_ context.Context, b models.Bet) error {
	if _, ok := t.st.bets[b.ID]; ok {
		return &models.PersistenceError{Op: "insert bet", Err: errDuplicateKey}
	}
	t.st.bets[b.ID] = b
	return nil
}

func (t *tx) TransitionBet(_ context.Context, betID string, status models.BetStatus, actualWin int64, at time.Time) (models.Bet, bool, error) {
	b, ok := t.st.bets[betID]
	if !ok || b.Status != models.BetPending {
		return models.Bet{}, false, nil
	}
	b.Status = status
	b.ActualWin = actualWin
	b.SettledAt = &at
	t.st.bets[betID] = b
	return b, true, nil
}

// Package models holds the persisted entities shared by every HuskyBids service.
package models

import "time"

// Side is a bet selection or a game result. Tie is only ever a game result.
type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
	SideTie  Side = "tie"
)

// Valid reports whether s can be bet on.
func (s Side) Valid() bool { return s == SideHome || s == SideAway }

type GameStatus string

const (
	GameScheduled GameStatus = "scheduled"
	GameLive      GameStatus = "live"
	GameCompleted GameStatus = "completed"
	GameCancelled GameStatus = "cancelled"
	GamePostponed GameStatus = "postponed"
)

func (s GameStatus) Valid() bool {
	switch s {
	case GameScheduled, GameLive, GameCompleted, GameCancelled, GamePostponed:
		return true
	}
	return false
}

// Voided reports whether bets on a game in this status must be refunded.
func (s GameStatus) Voided() bool { return s == GameCancelled || s == GamePostponed }

type BetStatus string

const (
	BetPending   BetStatus = "pending"
	BetWon       BetStatus = "won"
	BetLost      BetStatus = "lost"
	BetRefunded  BetStatus = "refunded"
	BetCancelled BetStatus = "cancelled"
)

// Terminal statuses never transition again.
func (s BetStatus) Terminal() bool { return s != BetPending && s != "" }

// User is a player account. Biscuits is the spendable balance; the rest are
// running counters maintained by placement and settlement.
type User struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	Biscuits          int64      `json:"biscuits"`
	TotalBets         int64      `json:"totalBets"`
	WinningBets       int64      `json:"winningBets"`
	LosingBets        int64      `json:"losingBets"`
	PendingBets       int64      `json:"pendingBets"`
	TotalBiscuitsWon  int64      `json:"totalBiscuitsWon"`
	TotalBiscuitsLost int64      `json:"totalBiscuitsLost"`
	LoginStreak       int        `json:"loginStreak"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Game is a sporting event. The bet count and biscuit fields are aggregates
// over the game's live bets and drive the odds.
type Game struct {
	ID              string     `json:"id"`
	HomeTeam        string     `json:"homeTeam"`
	AwayTeam        string     `json:"awayTeam"`
	StartTime       time.Time  `json:"startTime"`
	BettingClosesAt *time.Time `json:"bettingClosesAt,omitempty"`
	BettingEnabled  bool       `json:"bettingEnabled"`
	Status          GameStatus `json:"status"`
	Winner          Side       `json:"winner,omitempty"`
	HomeScore       *int       `json:"homeScore,omitempty"`
	AwayScore       *int       `json:"awayScore,omitempty"`
	HomeBetCount    int64      `json:"homeBetCount"`
	AwayBetCount    int64      `json:"awayBetCount"`
	HomeBiscuits    int64      `json:"homeBiscuitsWagered"`
	AwayBiscuits    int64      `json:"awayBiscuitsWagered"`
	SettledAt       *time.Time `json:"settledAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Totals returns the combined bet count and biscuits wagered on the game.
func (g Game) Totals() (bets, biscuits int64) {
	return g.HomeBetCount + g.AwayBetCount, g.HomeBiscuits + g.AwayBiscuits
}

// Bet is a wager. Odds and PotentialWin are frozen at placement.
type Bet struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	GameID          string     `json:"gameId"`
	BetAmount       int64      `json:"betAmount"`
	PredictedWinner Side       `json:"predictedWinner"`
	Odds            float64    `json:"odds"`
	PotentialWin    int64      `json:"potentialWin"`
	Status          BetStatus  `json:"status"`
	ActualWin       int64      `json:"actualWin"`
	PlacedAt        time.Time  `json:"placedAt"`
	SettledAt       *time.Time `json:"settledAt,omitempty"`
}

// UserDelta is added to a user's balance and counters in one statement.
type UserDelta struct {
	Biscuits          int64
	TotalBets         int64
	WinningBets       int64
	LosingBets        int64
	PendingBets       int64
	TotalBiscuitsWon  int64
	TotalBiscuitsLost int64
}

// GameDelta is added to a game's betting aggregates.
type GameDelta struct {
	HomeBetCount int64
	AwayBetCount int64
	HomeBiscuits int64
	AwayBiscuits int64
}

// StakeDelta returns the aggregate change for n bets totalling amount on side.
func StakeDelta(side Side, n, amount int64) GameDelta {
	if side == SideHome {
		return GameDelta{HomeBetCount: n, HomeBiscuits: amount}
	}
	return GameDelta{AwayBetCount: n, AwayBiscuits: amount}
}

// Package store defines the persistence contract shared by the ledger, the
// settlement engine and the statistics aggregator.
//
// All balance and aggregate mutation happens inside InTx. Row reads made with
// the ForUpdate methods hold a lock until the transaction ends, and locks are
// always taken in the order game, bet, user.
package store

import (
	"context"
	"time"

	"github.com/radieske/huskybids/pkg/models"
)

// Store is the full persistence surface.
type Store interface {
	Reader
	// InTx runs fn in one transaction. A nil return commits; anything else
	// rolls back and is returned. Serialization failures surface as
	// models.ErrConcurrencyConflict.
	InTx(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
}

// Reader serves non-locking reads outside a transaction.
type Reader interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	GetGame(ctx context.Context, id string) (models.Game, error)
	GetBet(ctx context.Context, id string) (models.Bet, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListGames(ctx context.Context, f GameFilter) ([]models.Game, error)
	ListBets(ctx context.Context, f BetFilter) ([]models.Bet, error)
	// SettleableGames returns completed games with a home or away winner
	// that still have pending bets.
	SettleableGames(ctx context.Context) ([]models.Game, error)
	// RefundableGames returns cancelled or postponed games that still have
	// pending bets.
	RefundableGames(ctx context.Context) ([]models.Game, error)
}

// Tx is the transactional surface.
type Tx interface {
	GameForUpdate(ctx context.Context, id string) (models.Game, error)
	BetForUpdate(ctx context.Context, id string) (models.Bet, error)
	UserForUpdate(ctx context.Context, id string) (models.User, error)
	PendingBets(ctx context.Context, gameID string) ([]models.Bet, error)

	// InsertUser creates u and reports false if the id already exists.
	InsertUser(ctx context.Context, u models.User) (bool, error)
	// TouchLogin records a login and the resulting streak.
	TouchLogin(ctx context.Context, userID string, streak int, at time.Time) error
	// ApplyUserDelta adds d to the user's balance and counters. It fails with
	// models.ErrInsufficientFunds when the balance would go negative.
	ApplyUserDelta(ctx context.Context, userID string, d models.UserDelta) (models.User, error)

	// UpsertGame writes schedule, status and result fields. Aggregates and
	// SettledAt are never overwritten.
	UpsertGame(ctx context.Context, g models.Game) (models.Game, error)
	ApplyGameDelta(ctx context.Context, gameID string, d models.GameDelta) (models.Game, error)
	// MarkGameSettled stamps SettledAt if unset.
	MarkGameSettled(ctx context.Context, gameID string, at time.Time) error

	InsertBet(ctx context.Context, b models.Bet) error
	// TransitionBet moves a pending bet to status. ok is false, with no
	// error, when the bet was no longer pending.
	TransitionBet(ctx context.Context, betID string, status models.BetStatus, actualWin int64, at time.Time) (b models.Bet, ok bool, err error)
}

// GameFilter narrows ListGames. Empty fields match everything.
type GameFilter struct {
	Statuses []models.GameStatus
	Limit    int
}

// BetFilter narrows ListBets. Results are ordered newest first.
type BetFilter struct {
	UserID string
	GameID string
	Status models.BetStatus
	Since  *time.Time
	Limit  int
}

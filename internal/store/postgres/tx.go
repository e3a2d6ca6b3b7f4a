package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/models"
)

type pgTx struct{ tx *sql.Tx }

var _ store.Tx = (*pgTx)(nil)

func (t *pgTx) GameForUpdate(ctx context.Context, id string) (models.Game, error) {
	g, err := scanGame(t.tx.QueryRowContext(ctx, `SELECT `+gameCols+` FROM games WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Game{}, models.ErrGameNotFound
	}
	if err != nil {
		return models.Game{}, wrap("lock game", err)
	}
	return g, nil
}

func (t *pgTx) BetForUpdate(ctx context.Context, id string) (models.Bet, error) {
	b, err := scanBet(t.tx.QueryRowContext(ctx, `SELECT `+betCols+` FROM bets WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bet{}, models.ErrBetNotFound
	}
	if err != nil {
		return models.Bet{}, wrap("lock bet", err)
	}
	return b, nil
}

func (t *pgTx) UserForUpdate(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, wrap("lock user", err)
	}
	return u, nil
}

func (t *pgTx) PendingBets(ctx context.Context, gameID string) ([]models.Bet, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+betCols+` FROM bets
		WHERE game_id = $1 AND status = 'pending'
		ORDER BY placed_at
		FOR UPDATE`, gameID)
	if err != nil {
		return nil, wrap("pending bets", err)
	}
	bets, err := scanBets(rows)
	if err != nil {
		return nil, wrap("pending bets", err)
	}
	return bets, nil
}

func (t *pgTx) InsertUser(ctx context.Context, u models.User) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO users (id, username, biscuits, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING`, u.ID, u.Username, u.Biscuits)
	if err != nil {
		return false, wrap("insert user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("insert user", err)
	}
	return n == 1, nil
}

func (t *pgTx) TouchLogin(ctx context.Context, userID string, streak int, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE users SET login_streak = $2, last_login_at = $3, updated_at = NOW()
		WHERE id = $1`, userID, streak, at)
	if err != nil {
		return wrap("touch login", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// ApplyUserDelta is a single conditional update; the balance guard in the
// WHERE clause keeps biscuits non-negative even without the row lock.
func (t *pgTx) ApplyUserDelta(ctx context.Context, userID string, d models.UserDelta) (models.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, `
		UPDATE users SET
			biscuits            = biscuits + $2,
			total_bets          = total_bets + $3,
			winning_bets        = winning_bets + $4,
			losing_bets         = losing_bets + $5,
			pending_bets        = pending_bets + $6,
			total_biscuits_won  = total_biscuits_won + $7,
			total_biscuits_lost = total_biscuits_lost + $8,
			updated_at          = NOW()
		WHERE id = $1 AND biscuits + $2 >= 0
		RETURNING `+userCols,
		userID, d.Biscuits, d.TotalBets, d.WinningBets, d.LosingBets, d.PendingBets,
		d.TotalBiscuitsWon, d.TotalBiscuitsLost))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return models.User{}, wrap("apply user delta", err)
		}
		if !exists {
			return models.User{}, models.ErrUserNotFound
		}
		return models.User{}, models.ErrInsufficientFunds
	}
	if err != nil {
		return models.User{}, wrap("apply user delta", err)
	}
	return u, nil
}

func (t *pgTx) UpsertGame(ctx context.Context, g models.Game) (models.Game, error) {
	out, err := scanGame(t.tx.QueryRowContext(ctx, `
		INSERT INTO games
			(id, home_team, away_team, start_time, betting_closes_at, betting_enabled,
			 status, winner, home_score, away_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			home_team         = EXCLUDED.home_team,
			away_team         = EXCLUDED.away_team,
			start_time        = EXCLUDED.start_time,
			betting_closes_at = EXCLUDED.betting_closes_at,
			betting_enabled   = EXCLUDED.betting_enabled,
			status            = EXCLUDED.status,
			winner            = EXCLUDED.winner,
			home_score        = EXCLUDED.home_score,
			away_score        = EXCLUDED.away_score,
			updated_at        = NOW()
		RETURNING `+gameCols,
		g.ID, g.HomeTeam, g.AwayTeam, g.StartTime, nullTime(g.BettingClosesAt), g.BettingEnabled,
		string(g.Status), nullString(string(g.Winner)), nullInt(g.HomeScore), nullInt(g.AwayScore)))
	if err != nil {
		return models.Game{}, wrap("upsert game", err)
	}
	return out, nil
}

func (t *pgTx) ApplyGameDelta(ctx context.Context, gameID string, d models.GameDelta) (models.Game, error) {
	g, err := scanGame(t.tx.QueryRowContext(ctx, `
		UPDATE games SET
			home_bet_count = home_bet_count + $2,
			away_bet_count = away_bet_count + $3,
			home_biscuits  = home_biscuits + $4,
			away_biscuits  = away_biscuits + $5,
			updated_at     = NOW()
		WHERE id = $1
		RETURNING `+gameCols,
		gameID, d.HomeBetCount, d.AwayBetCount, d.HomeBiscuits, d.AwayBiscuits))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Game{}, models.ErrGameNotFound
	}
	if err != nil {
		return models.Game{}, wrap("apply game delta", err)
	}
	return g, nil
}

func (t *pgTx) MarkGameSettled(ctx context.Context, gameID string, at time.Time) error {
	if _, err := t.tx.ExecContext(ctx, `
		UPDATE games SET settled_at = $2, updated_at = NOW()
		WHERE id = $1 AND settled_at IS NULL`, gameID, at); err != nil {
		return wrap("mark game settled", err)
	}
	return nil
}

func (t *pgTx) InsertBet(ctx context.Context, b models.Bet) error {
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO bets
			(id, user_id, game_id, bet_amount, predicted_winner, odds, potential_win, status, actual_win, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.UserID, b.GameID, b.BetAmount, string(b.PredictedWinner), b.Odds, b.PotentialWin,
		string(b.Status), b.ActualWin, b.PlacedAt); err != nil {
		return wrap("insert bet", err)
	}
	return nil
}

// TransitionBet is the settlement guard: the status predicate makes a second
// transition of the same bet a no-op.
func (t *pgTx) TransitionBet(ctx context.Context, betID string, status models.BetStatus, actualWin int64, at time.Time) (models.Bet, bool, error) {
	b, err := scanBet(t.tx.QueryRowContext(ctx, `
		UPDATE bets SET status = $2, actual_win = $3, settled_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+betCols, betID, string(status), actualWin, at))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bet{}, false, nil
	}
	if err != nil {
		return models.Bet{}, false, wrap("transition bet", err)
	}
	return b, true, nil
}

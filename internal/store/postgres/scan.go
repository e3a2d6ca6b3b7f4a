package postgres

import (
	"database/sql"
	"time"

	"github.com/radieske/huskybids/pkg/models"
)

const (
	userCols = `id, username, biscuits, total_bets, winning_bets, losing_bets, pending_bets,
		total_biscuits_won, total_biscuits_lost, login_streak, last_login_at, created_at, updated_at`

	gameCols = `id, home_team, away_team, start_time, betting_closes_at, betting_enabled, status,
		winner, home_score, away_score, home_bet_count, away_bet_count, home_biscuits, away_biscuits,
		settled_at, created_at, updated_at`

	betCols = `id, user_id, game_id, bet_amount, predicted_winner, odds, potential_win, status,
		actual_win, placed_at, settled_at`
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (models.User, error) {
	var (
		u         models.User
		lastLogin sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Username, &u.Biscuits, &u.TotalBets, &u.WinningBets, &u.LosingBets,
		&u.PendingBets, &u.TotalBiscuitsWon, &u.TotalBiscuitsLost, &u.LoginStreak, &lastLogin,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return models.User{}, err
	}
	u.LastLoginAt = timePtr(lastLogin)
	return u, nil
}

func scanGame(s scanner) (models.Game, error) {
	var (
		g                    models.Game
		status               string
		closesAt, settledAt  sql.NullTime
		winner               sql.NullString
		homeScore, awayScore sql.NullInt64
	)
	err := s.Scan(&g.ID, &g.HomeTeam, &g.AwayTeam, &g.StartTime, &closesAt, &g.BettingEnabled,
		&status, &winner, &homeScore, &awayScore, &g.HomeBetCount, &g.AwayBetCount,
		&g.HomeBiscuits, &g.AwayBiscuits, &settledAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return models.Game{}, err
	}
	g.Status = models.GameStatus(status)
	g.Winner = models.Side(winner.String)
	g.BettingClosesAt = timePtr(closesAt)
	g.SettledAt = timePtr(settledAt)
	g.HomeScore = intPtr(homeScore)
	g.AwayScore = intPtr(awayScore)
	return g, nil
}

func scanBet(s scanner) (models.Bet, error) {
	var (
		b                 models.Bet
		predicted, status string
		settledAt         sql.NullTime
	)
	err := s.Scan(&b.ID, &b.UserID, &b.GameID, &b.BetAmount, &predicted, &b.Odds, &b.PotentialWin,
		&status, &b.ActualWin, &b.PlacedAt, &settledAt)
	if err != nil {
		return models.Bet{}, err
	}
	b.PredictedWinner = models.Side(predicted)
	b.Status = models.BetStatus(status)
	b.SettledAt = timePtr(settledAt)
	return b, nil
}

func scanBets(rows *sql.Rows) ([]models.Bet, error) {
	defer rows.Close()
	var out []models.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanGames(rows *sql.Rows) ([]models.Game, error) {
	defer rows.Close()
	var out []models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

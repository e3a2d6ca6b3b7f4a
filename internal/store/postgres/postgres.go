// Package postgres implements store.Store on Postgres through database/sql
// and lib/pq. Transactions run at SERIALIZABLE and lock rows with FOR UPDATE.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/models"
)

//go:embed schema.sql
var schema string

// Store implements store.Store over an injected *sql.DB.
type Store struct{ db *sql.DB }

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store { return &Store{db: db} }

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return wrap("migrate", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) InTx(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return classify(wrap("begin", err))
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(wrap("commit", err))
	}
	return nil
}

// isConflict matches serialization_failure and deadlock_detected.
func isConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return true
		}
	}
	return false
}

func classify(err error) error {
	if isConflict(err) {
		return fmt.Errorf("%w: %v", models.ErrConcurrencyConflict, err)
	}
	return err
}

func wrap(op string, err error) error {
	return &models.PersistenceError{Op: op, Err: err}
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, wrap("get user", err)
	}
	return u, nil
}

func (s *Store) GetGame(ctx context.Context, id string) (models.Game, error) {
	g, err := scanGame(s.db.QueryRowContext(ctx, `SELECT `+gameCols+` FROM games WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Game{}, models.ErrGameNotFound
	}
	if err != nil {
		return models.Game{}, wrap("get game", err)
	}
	return g, nil
}

func (s *Store) GetBet(ctx context.Context, id string) (models.Bet, error) {
	b, err := scanBet(s.db.QueryRowContext(ctx, `SELECT `+betCols+` FROM bets WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bet{}, models.ErrBetNotFound
	}
	if err != nil {
		return models.Bet{}, wrap("get bet", err)
	}
	return b, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY id`)
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrap("list users", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list users", err)
	}
	return out, nil
}

func (s *Store) ListGames(ctx context.Context, f store.GameFilter) ([]models.Game, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	q := `SELECT ` + gameCols + ` FROM games`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY start_time, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap("list games", err)
	}
	games, err := scanGames(rows)
	if err != nil {
		return nil, wrap("list games", err)
	}
	return games, nil
}

func (s *Store) ListBets(ctx context.Context, f store.BetFilter) ([]models.Bet, error) {
	q, args := betQuery(f)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap("list bets", err)
	}
	bets, err := scanBets(rows)
	if err != nil {
		return nil, wrap("list bets", err)
	}
	return bets, nil
}

func betQuery(f store.BetFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.GameID != "" {
		add("game_id = $%d", f.GameID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Since != nil {
		add("placed_at >= $%d", *f.Since)
	}

	q := `SELECT ` + betCols + ` FROM bets`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY placed_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return q, args
}

func (s *Store) SettleableGames(ctx context.Context) ([]models.Game, error) {
	return s.gamesWithPending(ctx, "settleable games", `g.status = 'completed' AND g.winner IN ('home', 'away')`)
}

func (s *Store) RefundableGames(ctx context.Context) ([]models.Game, error) {
	return s.gamesWithPending(ctx, "refundable games", `g.status IN ('cancelled', 'postponed')`)
}

func (s *Store) gamesWithPending(ctx context.Context, op, cond string) ([]models.Game, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+gameCols+`
		FROM games g
		WHERE `+cond+`
		  AND EXISTS (SELECT 1 FROM bets b WHERE b.game_id = g.id AND b.status = 'pending')
		ORDER BY g.start_time`)
	if err != nil {
		return nil, wrap(op, err)
	}
	games, err := scanGames(rows)
	if err != nil {
		return nil, wrap(op, err)
	}
	return games, nil
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/radieske/huskybids/internal/auth"
	"github.com/radieske/huskybids/internal/bet-service/dto"
	"github.com/radieske/huskybids/internal/bet-service/ledger"
	"github.com/radieske/huskybids/internal/bet-service/odds"
	"github.com/radieske/huskybids/internal/settlement/settler"
	"github.com/radieske/huskybids/internal/stats"
	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/internal/store/memory"
	"github.com/radieske/huskybids/pkg/models"
)

var now = time.Date(2026, 10, 10, 12, 0, 0, 0, time.UTC)

type env struct {
	store *memory.Store
	srv   *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := func() time.Time { return now }
	st := memory.New()
	agg := stats.New(st, stats.WithClock(clock))
	l := ledger.New(st, ledger.WithClock(clock), ledger.WithCacheInvalidator(agg))
	s := settler.New(st, settler.WithClock(clock), settler.WithInvalidator(agg))

	api := NewServer(Deps{
		Store:      st,
		Ledger:     l,
		Settler:    s,
		Stats:      agg,
		Verifier:   auth.HeaderVerifier{},
		AdminToken: "secret",
		Now:        clock,
	})
	e := &env{store: st, srv: httptest.NewServer(api.Router())}
	t.Cleanup(e.srv.Close)
	e.putGame(t, models.Game{ID: "g1", HomeTeam: "Washington", AwayTeam: "Oregon", StartTime: now.Add(24 * time.Hour), Status: models.GameScheduled, BettingEnabled: true})
	return e
}

func (e *env) putGame(t *testing.T, g models.Game) {
	t.Helper()
	err := e.store.InTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.UpsertGame(context.Background(), g)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}

type call struct {
	method string
	path   string
	user   string
	admin  string
	body   string
}

func (e *env) do(t *testing.T, c call, out any) int {
	t.Helper()
	req, err := http.NewRequest(c.method, e.srv.URL+c.path, bytes.NewBufferString(c.body))
	if err != nil {
		t.Fatal(err)
	}
	if c.user != "" {
		req.Header.Set("X-User-ID", c.user)
	}
	if c.admin != "" {
		req.Header.Set("X-Admin-Token", c.admin)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", c.method, c.path, err)
		}
	}
	return resp.StatusCode
}

func bet(amount any, side string) string {
	return fmt.Sprintf(`{"gameId":"g1","betAmount":%v,"predictedWinner":%q}`, amount, side)
}

func TestPlaceBetAndList(t *testing.T) {
	e := newEnv(t)

	var placed dto.PlaceBetResponse
	if code := e.do(t, call{method: "POST", path: "/v1/bets", user: "u1", body: bet(500, "home")}, &placed); code != http.StatusCreated {
		t.Fatalf("status = %d", code)
	}
	if placed.NewBalance != 500 || placed.Bet.Odds != 2.0 || placed.Bet.PotentialWin != 1000 {
		t.Fatalf("placed = %+v", placed)
	}
	if placed.Odds.Home != odds.MinOdds || placed.Odds.Away != odds.MaxOdds {
		t.Fatalf("post-placement odds = %+v", placed.Odds)
	}

	var list dto.BetListResponse
	if code := e.do(t, call{method: "GET", path: "/v1/bets", user: "u1"}, &list); code != http.StatusOK || list.Count != 1 {
		t.Fatalf("list = %d %+v", code, list)
	}
	if code := e.do(t, call{method: "GET", path: "/v1/bets?status=won", user: "u1"}, &list); code != http.StatusOK || list.Count != 0 {
		t.Fatalf("filtered list = %d %+v", code, list)
	}

	var me models.User
	if code := e.do(t, call{method: "GET", path: "/v1/me", user: "u1"}, &me); code != http.StatusOK || me.Biscuits != 500 {
		t.Fatalf("me = %d %+v", code, me)
	}
}

func TestPlaceBetErrors(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		name   string
		c      call
		status int
		code   string
		msg    string
	}{
		{"unauthenticated", call{method: "POST", path: "/v1/bets", body: bet(100, "home")}, 401, "unauthenticated", "authentication required"},
		{"bad json", call{method: "POST", path: "/v1/bets", user: "u1", body: "{"}, 400, "bad_request", "bad json"},
		{"missing game", call{method: "POST", path: "/v1/bets", user: "u1", body: `{"betAmount":100,"predictedWinner":"home"}`}, 400, "bad_request", "gameId and predictedWinner are required"},
		{"below minimum", call{method: "POST", path: "/v1/bets", user: "u1", body: bet(5, "home")}, 400, "validation", "Minimum bet is 10 biscuits"},
		{"tie prediction", call{method: "POST", path: "/v1/bets", user: "u1", body: bet(100, "tie")}, 400, "invalid_prediction", models.ErrInvalidPrediction.Error()},
		{"insufficient", call{method: "POST", path: "/v1/bets", user: "u1", body: bet(5000, "home")}, 409, "insufficient_funds", "Insufficient biscuits. You have 1000 biscuits"},
		{"unknown game", call{method: "POST", path: "/v1/bets", user: "u1", body: `{"gameId":"nope","betAmount":100,"predictedWinner":"home"}`}, 404, "not_found", "game not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got dto.ErrorResponse
			status := e.do(t, tc.c, &got)
			if status != tc.status || got.Code != tc.code || got.Error != tc.msg {
				t.Fatalf("got %d %+v, want %d %s %q", status, got, tc.status, tc.code, tc.msg)
			}
		})
	}
}

func TestCancelBet(t *testing.T) {
	e := newEnv(t)
	var placed dto.PlaceBetResponse
	e.do(t, call{method: "POST", path: "/v1/bets", user: "u1", body: bet(300, "away")}, &placed)

	var errResp dto.ErrorResponse
	if code := e.do(t, call{method: "DELETE", path: "/v1/bets/" + placed.Bet.ID, user: "u2"}, &errResp); code != http.StatusNotFound {
		t.Fatalf("foreign cancel = %d", code)
	}

	var cancelled dto.CancelBetResponse
	if code := e.do(t, call{method: "DELETE", path: "/v1/bets/" + placed.Bet.ID, user: "u1"}, &cancelled); code != http.StatusOK {
		t.Fatalf("cancel = %d", code)
	}
	if cancelled.NewBalance != 1000 || cancelled.Bet.Status != models.BetCancelled {
		t.Fatalf("cancelled = %+v", cancelled)
	}
	if code := e.do(t, call{method: "DELETE", path: "/v1/bets/" + placed.Bet.ID, user: "u1"}, &errResp); code != http.StatusConflict || errResp.Code != "bet_not_pending" {
		t.Fatalf("second cancel = %d %+v", code, errResp)
	}
}

func TestGamesAndOdds(t *testing.T) {
	e := newEnv(t)
	e.putGame(t, models.Game{ID: "g0", HomeTeam: "Washington", AwayTeam: "Stanford", StartTime: now.Add(-time.Hour), Status: models.GameCompleted, Winner: models.SideHome})

	var games []models.Game
	if code := e.do(t, call{method: "GET", path: "/v1/games"}, &games); code != http.StatusOK || len(games) != 1 || games[0].ID != "g1" {
		t.Fatalf("games = %d %+v", code, games)
	}
	if code := e.do(t, call{method: "GET", path: "/v1/games?status=completed"}, &games); code != http.StatusOK || len(games) != 1 || games[0].ID != "g0" {
		t.Fatalf("completed games = %d %+v", code, games)
	}
	if code := e.do(t, call{method: "GET", path: "/v1/games?status=bogus"}, nil); code != http.StatusBadRequest {
		t.Fatalf("bogus status = %d", code)
	}

	var snap odds.Snapshot
	if code := e.do(t, call{method: "GET", path: "/v1/games/g1/odds"}, &snap); code != http.StatusOK {
		t.Fatalf("odds = %d", code)
	}
	if snap.Home != 2.0 || snap.Away != 2.0 || snap.HomeMultiplier != "2.00x" || snap.HouseEdge != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if code := e.do(t, call{method: "GET", path: "/v1/games/nope"}, nil); code != http.StatusNotFound {
		t.Fatalf("missing game = %d", code)
	}
}

func TestAdminSettlement(t *testing.T) {
	e := newEnv(t)
	e.do(t, call{method: "POST", path: "/v1/bets", user: "u1", body: bet(500, "home")}, nil)

	if code := e.do(t, call{method: "POST", path: "/v1/admin/games/g1/settle"}, nil); code != http.StatusForbidden {
		t.Fatalf("no token = %d", code)
	}
	var errResp dto.ErrorResponse
	if code := e.do(t, call{method: "POST", path: "/v1/admin/games/g1/settle", admin: "secret"}, &errResp); code != http.StatusConflict || errResp.Code != "game_state" {
		t.Fatalf("scheduled settle = %d %+v", code, errResp)
	}

	g, _ := e.store.GetGame(context.Background(), "g1")
	g.Status, g.Winner = models.GameCompleted, models.SideHome
	e.putGame(t, g)

	var res settler.Result
	if code := e.do(t, call{method: "POST", path: "/v1/admin/games/g1/settle", admin: "secret"}, &res); code != http.StatusOK {
		t.Fatalf("settle = %d", code)
	}
	if res.Settled != 1 || res.Won != 1 || res.TotalPayout != 1000 {
		t.Fatalf("result = %+v", res)
	}

	var st stats.UserStats
	if code := e.do(t, call{method: "GET", path: "/v1/me/stats", user: "u1"}, &st); code != http.StatusOK {
		t.Fatalf("stats = %d", code)
	}
	if st.Biscuits != 1500 || st.WinningBets != 1 || st.NetProfit != 500 || st.WinRate != 100 {
		t.Fatalf("stats = %+v", st)
	}

	var sum settler.Summary
	if code := e.do(t, call{method: "POST", path: "/v1/admin/settle", admin: "secret"}, &sum); code != http.StatusOK || sum.Settled != 0 {
		t.Fatalf("settle all = %d %+v", code, sum)
	}
}

func TestLeaderboard(t *testing.T) {
	e := newEnv(t)
	e.do(t, call{method: "POST", path: "/v1/bets", user: "u1", body: bet(100, "home")}, nil)
	e.do(t, call{method: "GET", path: "/v1/me", user: "u2"}, nil)

	var page stats.LeaderboardPage
	if code := e.do(t, call{method: "GET", path: "/v1/leaderboard?limit=1"}, &page); code != http.StatusOK {
		t.Fatalf("leaderboard = %d", code)
	}
	if page.Total != 2 || len(page.Entries) != 1 || page.Entries[0].UserID != "u2" {
		t.Fatalf("page = %+v", page)
	}
	if code := e.do(t, call{method: "GET", path: "/v1/leaderboard?sortBy=luck"}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad sort = %d", code)
	}
	if code := e.do(t, call{method: "GET", path: "/v1/leaderboard?limit=abc"}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit = %d", code)
	}

	var rank stats.Rank
	if code := e.do(t, call{method: "GET", path: "/v1/me/rank?metric=totalBets", user: "u1"}, &rank); code != http.StatusOK || rank.Rank != 1 {
		t.Fatalf("rank = %d %+v", code, rank)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("place: %w", models.ErrConcurrencyConflict), http.StatusServiceUnavailable},
		{&models.PersistenceError{Op: "insert bet", Err: errors.New("pq: connection reset")}, http.StatusInternalServerError},
		{fmt.Errorf("%w: game has started", models.ErrBettingClosed), http.StatusConflict},
		{fmt.Errorf("settle: %w", models.ErrTieGame), http.StatusConflict},
		{auth.ErrUnauthenticated, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		status, _, msg := classify(tc.err)
		if status != tc.status {
			t.Errorf("%v: status %d, want %d", tc.err, status, tc.status)
		}
		if status == http.StatusInternalServerError && msg != "internal error" {
			t.Errorf("internal message leaked: %q", msg)
		}
	}
}

package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/radieske/huskybids/internal/bet-service/ledger"
	"github.com/radieske/huskybids/internal/settlement/settler"
	"github.com/radieske/huskybids/internal/shared/kafka"
	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/internal/store/memory"
	"github.com/radieske/huskybids/pkg/contracts/events"
	"github.com/radieske/huskybids/pkg/models"
)

var now = time.Date(2026, 10, 10, 12, 0, 0, 0, time.UTC)

type captureWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msgs...)
	return nil
}

type env struct {
	store  *memory.Store
	ledger *ledger.Ledger
	dlq    *captureWriter
	proc   *Processor
	errors []string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := func() time.Time { return now }
	st := memory.New()
	l := ledger.New(st, ledger.WithClock(clock))
	e := &env{store: st, ledger: l, dlq: &captureWriter{}}
	e.proc = &Processor{
		Store:    st,
		DLQ:      e.dlq,
		Settler:  settler.New(st, settler.WithClock(clock)),
		Refunder: l,
		OnError:  func(phase string) { e.errors = append(e.errors, phase) },
	}
	return e
}

func update(status, winner string) events.GameUpdate {
	return events.GameUpdate{
		GameID:    "g1",
		HomeTeam:  "Washington",
		AwayTeam:  "Oregon",
		StartTime: now.Add(24 * time.Hour),
		Status:    status,
		Winner:    winner,
		Source:    "test",
	}
}

func (e *env) send(t *testing.T, u events.GameUpdate) {
	t.Helper()
	b, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	e.proc.Handle(context.Background(), kafka.Message{Key: []byte(u.GameID), Value: b})
}

func (e *env) game(t *testing.T) models.Game {
	t.Helper()
	g, err := e.store.GetGame(context.Background(), "g1")
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func (e *env) placeHomeBet(t *testing.T, user string, amount float64) {
	t.Helper()
	if _, err := e.ledger.EnsureUser(context.Background(), user, user); err != nil {
		t.Fatal(err)
	}
	_, err := e.ledger.PlaceBet(context.Background(), ledger.PlaceBetInput{UserID: user, GameID: "g1", BetAmount: amount, PredictedWinner: "home"})
	if err != nil {
		t.Fatal(err)
	}
}

func (e *env) balance(t *testing.T, user string) int64 {
	t.Helper()
	u, err := e.store.GetUser(context.Background(), user)
	if err != nil {
		t.Fatal(err)
	}
	return u.Biscuits
}

func TestScheduleThenCompleteSettles(t *testing.T) {
	e := newEnv(t)
	e.send(t, update("scheduled", ""))
	if g := e.game(t); g.Status != models.GameScheduled || !g.BettingEnabled {
		t.Fatalf("game = %+v", g)
	}

	e.placeHomeBet(t, "u1", 500)

	e.send(t, update("completed", "home"))
	g := e.game(t)
	if g.Status != models.GameCompleted || g.Winner != models.SideHome || g.SettledAt == nil {
		t.Fatalf("game = %+v", g)
	}
	if g.HomeBetCount != 1 || g.HomeBiscuits != 500 {
		t.Fatalf("aggregates changed: %+v", g)
	}
	if b := e.balance(t, "u1"); b != 1500 {
		t.Fatalf("balance = %d", b)
	}

	// A settled game ignores further updates.
	e.send(t, update("cancelled", ""))
	if g := e.game(t); g.Status != models.GameCompleted {
		t.Fatalf("settled game changed: %+v", g)
	}
	if len(e.dlq.msgs) != 0 || len(e.errors) != 0 {
		t.Fatalf("dlq=%d errors=%v", len(e.dlq.msgs), e.errors)
	}
}

func TestCancelledRefunds(t *testing.T) {
	e := newEnv(t)
	e.send(t, update("scheduled", ""))
	e.placeHomeBet(t, "u1", 300)

	e.send(t, update("cancelled", ""))
	if b := e.balance(t, "u1"); b != 1000 {
		t.Fatalf("balance = %d", b)
	}
	bets, _ := e.store.ListBets(context.Background(), store.BetFilter{GameID: "g1"})
	if len(bets) != 1 || bets[0].Status != models.BetRefunded {
		t.Fatalf("bets = %+v", bets)
	}

	// Final status does not revert to an open one.
	e.send(t, update("scheduled", ""))
	if g := e.game(t); g.Status != models.GameCancelled {
		t.Fatalf("status = %s", g.Status)
	}
}

func TestTieIsLeftPending(t *testing.T) {
	e := newEnv(t)
	e.send(t, update("scheduled", ""))
	e.placeHomeBet(t, "u1", 100)
	e.send(t, update("completed", "tie"))

	bets, _ := e.store.ListBets(context.Background(), store.BetFilter{GameID: "g1"})
	if bets[0].Status != models.BetPending {
		t.Fatalf("tie settled a bet: %+v", bets[0])
	}
	if g := e.game(t); g.Winner != models.SideTie || g.SettledAt != nil {
		t.Fatalf("game = %+v", g)
	}
}

// payoutFailStore fails balance updates for one user while failUser is set.
type payoutFailStore struct {
	*memory.Store
	failUser string
}

func (f *payoutFailStore) InTx(ctx context.Context, fn func(store.Tx) error) error {
	return f.Store.InTx(ctx, func(tx store.Tx) error { return fn(&payoutFailTx{Tx: tx, failUser: f.failUser}) })
}

type payoutFailTx struct {
	store.Tx
	failUser string
}

func (f *payoutFailTx) ApplyUserDelta(ctx context.Context, userID string, d models.UserDelta) (models.User, error) {
	if userID == f.failUser && d.WinningBets > 0 {
		return models.User{}, errors.New("payout unavailable")
	}
	return f.Tx.ApplyUserDelta(ctx, userID, d)
}

func TestDecidedWinnerIsNotRewritten(t *testing.T) {
	e := newEnv(t)
	flaky := &payoutFailStore{Store: e.store, failUser: "u2"}
	e.proc.Settler = settler.New(flaky, settler.WithClock(func() time.Time { return now }))

	e.send(t, update("scheduled", ""))
	e.placeHomeBet(t, "u1", 100)
	e.placeHomeBet(t, "u2", 100)

	// u2's payout fails, leaving the game partly settled.
	e.send(t, update("completed", "home"))
	if g := e.game(t); g.SettledAt != nil {
		t.Fatalf("partly settled game stamped: %+v", g)
	}
	if b := e.balance(t, "u1"); b != 1100 {
		t.Fatalf("u1 balance = %d", b)
	}

	e.send(t, update("completed", "away"))
	if g := e.game(t); g.Winner != models.SideHome {
		t.Fatalf("winner rewritten to %s", g.Winner)
	}
	e.send(t, update("cancelled", ""))
	if g := e.game(t); g.Status != models.GameCompleted {
		t.Fatalf("status rewritten to %s", g.Status)
	}

	// A resend of the same result retries the unpaid bet.
	flaky.failUser = ""
	e.send(t, update("completed", "home"))
	bets, _ := e.store.ListBets(context.Background(), store.BetFilter{GameID: "g1"})
	for _, b := range bets {
		if b.Status != models.BetWon {
			t.Fatalf("bet %s = %s", b.ID, b.Status)
		}
	}
	if b := e.balance(t, "u2"); b != 1100 {
		t.Fatalf("u2 balance = %d", b)
	}
	if g := e.game(t); g.SettledAt == nil {
		t.Fatalf("game not stamped: %+v", g)
	}
}

func TestTieCanBeDecided(t *testing.T) {
	e := newEnv(t)
	e.send(t, update("scheduled", ""))
	e.placeHomeBet(t, "u1", 100)
	e.send(t, update("completed", "tie"))
	e.send(t, update("completed", "home"))

	if g := e.game(t); g.Winner != models.SideHome || g.SettledAt == nil {
		t.Fatalf("game = %+v", g)
	}
	if b := e.balance(t, "u1"); b != 1100 {
		t.Fatalf("balance = %d", b)
	}
}

func TestCancelledGameIsNotCompleted(t *testing.T) {
	e := newEnv(t)
	e.send(t, update("scheduled", ""))
	e.placeHomeBet(t, "u1", 100)
	e.send(t, update("cancelled", ""))
	e.send(t, update("completed", "home"))

	if g := e.game(t); g.Status != models.GameCancelled || g.Winner != "" {
		t.Fatalf("game = %+v", g)
	}
	if b := e.balance(t, "u1"); b != 1000 {
		t.Fatalf("balance = %d", b)
	}
	e.send(t, update("postponed", ""))
	if g := e.game(t); g.Status != models.GamePostponed {
		t.Fatalf("status = %s", g.Status)
	}
}

func TestLockedTransitions(t *testing.T) {
	decided := models.Game{Status: models.GameCompleted, Winner: models.SideHome}
	tie := models.Game{Status: models.GameCompleted, Winner: models.SideTie}
	cancelled := models.Game{Status: models.GameCancelled}
	live := models.Game{Status: models.GameLive}

	cases := []struct {
		name   string
		cur    models.Game
		status models.GameStatus
		winner models.Side
		want   bool
	}{
		{"open game takes anything", live, models.GameCompleted, models.SideAway, false},
		{"decided resend", decided, models.GameCompleted, models.SideHome, false},
		{"decided flip", decided, models.GameCompleted, models.SideAway, true},
		{"decided to tie", decided, models.GameCompleted, models.SideTie, true},
		{"decided to cancelled", decided, models.GameCancelled, "", true},
		{"decided to live", decided, models.GameLive, "", true},
		{"tie decided", tie, models.GameCompleted, models.SideAway, false},
		{"tie to cancelled", tie, models.GameCancelled, "", true},
		{"cancelled to postponed", cancelled, models.GamePostponed, "", false},
		{"cancelled to completed", cancelled, models.GameCompleted, models.SideHome, true},
		{"cancelled to scheduled", cancelled, models.GameScheduled, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := locked(tc.cur, tc.status, tc.winner); got != tc.want {
				t.Fatalf("locked = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestInvalidMessagesGoToDLQ(t *testing.T) {
	e := newEnv(t)
	e.proc.Handle(context.Background(), kafka.Message{Value: []byte("{not json"), Offset: 7})
	e.send(t, update("completed", ""))

	if len(e.dlq.msgs) != 2 {
		t.Fatalf("dlq = %d", len(e.dlq.msgs))
	}
	phase := func(m kafka.Message) string {
		for _, h := range m.Headers {
			if h.Key == "error_phase" {
				return string(h.Value)
			}
		}
		return ""
	}
	if phase(e.dlq.msgs[0]) != "decode" || phase(e.dlq.msgs[1]) != "validate" {
		t.Fatalf("phases = %q %q", phase(e.dlq.msgs[0]), phase(e.dlq.msgs[1]))
	}
	if len(e.errors) != 2 {
		t.Fatalf("errors = %v", e.errors)
	}
	if _, err := e.store.GetGame(context.Background(), "g1"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("invalid update stored a game: %v", err)
	}
}

// sliceReader serves msgs once, then blocks until ctx is done.
type sliceReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *sliceReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestRunCommitsEveryMessage(t *testing.T) {
	e := newEnv(t)
	good, _ := json.Marshal(update("scheduled", ""))
	r := &sliceReader{msgs: []kafka.Message{
		{Value: good, Offset: 1},
		{Value: []byte("garbage"), Offset: 2},
	}}
	var consumed int
	e.proc.Reader = r
	e.proc.OnConsumed = func() { consumed++ }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.proc.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for r.commits() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run = %v", err)
	}
	if r.commits() != 2 || consumed != 2 {
		t.Fatalf("commits=%d consumed=%d", r.commits(), consumed)
	}
	if _, err := e.store.GetGame(context.Background(), "g1"); err != nil {
		t.Fatalf("game not stored: %v", err)
	}
}

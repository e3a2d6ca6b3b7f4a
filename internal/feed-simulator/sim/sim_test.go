package sim

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/huskybids/pkg/contracts/events"
)

var t0 = time.Date(2026, 10, 10, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{Lead: time.Minute, Spacing: time.Minute, Duration: 10 * time.Minute, BettingClose: 10 * time.Second}
}

func TestSeasonLifecycle(t *testing.T) {
	s := New(testConfig(), 42)
	s.NewSeason(t0)

	snap := s.Snapshot()
	if len(snap) != len(Catalog) {
		t.Fatalf("games = %d", len(snap))
	}
	for _, u := range snap {
		if err := u.Validate(); err != nil {
			t.Fatalf("invalid update %+v: %v", u, err)
		}
		if u.Status != "scheduled" || !u.BettingClosesAt.Before(u.StartTime) {
			t.Fatalf("update = %+v", u)
		}
	}

	if got := s.Tick(t0.Add(30 * time.Second)); len(got) != 0 {
		t.Fatalf("nothing should start yet: %+v", got)
	}

	first := s.Tick(t0.Add(time.Minute))
	if len(first) != 1 || first[0].Status != "live" || *first[0].HomeScore != 0 {
		t.Fatalf("kickoff = %+v", first)
	}

	// Past every game's end: all complete with a decisive winner.
	end := t0.Add(time.Hour)
	final := map[string]events.GameUpdate{}
	for i := 0; i < 3; i++ {
		for _, u := range s.Tick(end) {
			if u.Status == "completed" {
				final[u.GameID] = u
			}
		}
	}
	if len(final) != len(Catalog) {
		t.Fatalf("completed = %d", len(final))
	}
	for _, u := range final {
		if err := u.Validate(); err != nil {
			t.Fatal(err)
		}
		home, away := *u.HomeScore, *u.AwayScore
		if home == away || (u.Winner == "home") != (home > away) {
			t.Fatalf("result = %+v (%d-%d)", u, home, away)
		}
	}
}

func TestNewSeasonAfterAllFinal(t *testing.T) {
	cfg := testConfig()
	cfg.PostponeRate = 1
	s := New(cfg, 1)
	s.NewSeason(t0)
	old := s.Snapshot()[0].GameID

	out := s.Tick(t0.Add(time.Hour))
	postponed := 0
	for _, u := range out {
		if u.Status == "postponed" {
			postponed++
		}
	}
	if postponed != len(Catalog) {
		t.Fatalf("postponed = %d", postponed)
	}
	if next := s.Snapshot(); next[0].GameID == old || next[0].Status != "scheduled" {
		t.Fatalf("new season = %+v", next[0])
	}
}

func TestEmittedUpdatesAreDetached(t *testing.T) {
	s := New(testConfig(), 7)
	s.NewSeason(t0)
	kick := s.Tick(t0.Add(time.Minute))
	before := *kick[0].HomeScore
	for i := 0; i < 20; i++ {
		s.Tick(t0.Add(time.Minute + time.Duration(i)*time.Second))
	}
	if *kick[0].HomeScore != before {
		t.Fatal("emitted update changed after later ticks")
	}
}

func TestHubReplaysSnapshotAndBroadcasts(t *testing.T) {
	s := New(testConfig(), 3)
	s.NewSeason(t0)
	h := NewHub(s.Snapshot, prometheus.NewRegistry(), nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	for range Catalog {
		var u events.GameUpdate
		if err := conn.ReadJSON(&u); err != nil || u.Status != "scheduled" {
			t.Fatalf("replay = %+v, %v", u, err)
		}
	}

	h.Broadcast(s.Tick(t0.Add(time.Minute)))
	var u events.GameUpdate
	if err := conn.ReadJSON(&u); err != nil || u.Status != "live" {
		t.Fatalf("broadcast = %+v, %v", u, err)
	}
}

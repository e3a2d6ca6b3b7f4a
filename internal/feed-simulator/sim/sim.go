// Package sim plays a schedule of Washington games through their lifecycle
// and emits feed updates for local development.
package sim

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/huskybids/pkg/contracts/events"
)

type Matchup struct {
	Home string
	Away string
}

// Catalog is the fixed slate a season is built from.
var Catalog = []Matchup{
	{Home: "Washington", Away: "Oregon"},
	{Home: "Washington State", Away: "Washington"},
	{Home: "Washington", Away: "USC"},
	{Home: "Michigan", Away: "Washington"},
	{Home: "Washington", Away: "UCLA"},
	{Home: "Ohio State", Away: "Washington"},
}

type Config struct {
	Lead         time.Duration // first kickoff after the season starts
	Spacing      time.Duration // between kickoffs
	Duration     time.Duration // length of a game
	BettingClose time.Duration // betting closes this long before kickoff
	PostponeRate float64       // chance a game is postponed instead of played
	Source       string
}

func DefaultConfig() Config {
	return Config{
		Lead:         2 * time.Minute,
		Spacing:      90 * time.Second,
		Duration:     2 * time.Minute,
		BettingClose: 15 * time.Second,
		PostponeRate: 0.1,
		Source:       "feed-simulator",
	}
}

type game struct {
	update    events.GameUpdate
	postponed bool
}

type Simulator struct {
	cfg Config
	rnd *rand.Rand

	mu    sync.Mutex
	games []*game
}

func New(cfg Config, seed int64) *Simulator {
	if cfg.Source == "" {
		cfg.Source = "feed-simulator"
	}
	return &Simulator{cfg: cfg, rnd: rand.New(rand.NewSource(seed))}
}

// NewSeason replaces the schedule with the catalog starting at now.
func (s *Simulator) NewSeason(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games = s.games[:0]
	for i, m := range Catalog {
		start := now.Add(s.cfg.Lead + time.Duration(i)*s.cfg.Spacing).UTC()
		closes := start.Add(-s.cfg.BettingClose)
		s.games = append(s.games, &game{
			update: events.GameUpdate{
				GameID:          uuid.NewString(),
				HomeTeam:        m.Home,
				AwayTeam:        m.Away,
				StartTime:       start,
				BettingClosesAt: &closes,
				Status:          "scheduled",
				Source:          s.cfg.Source,
			},
			postponed: s.rnd.Float64() < s.cfg.PostponeRate,
		})
	}
}

// Tick advances every game to now and returns the updates that changed. A
// new season starts once every game is final.
func (s *Simulator) Tick(now time.Time) []events.GameUpdate {
	s.mu.Lock()
	var out []events.GameUpdate
	final := 0
	for _, g := range s.games {
		if s.advance(g, now) {
			g.update.Version++
			g.update.UpdatedAt = now.UTC()
			out = append(out, clone(g.update))
		}
		if isFinal(g.update.Status) {
			final++
		}
	}
	done := len(s.games) == 0 || final == len(s.games)
	s.mu.Unlock()

	if done {
		s.NewSeason(now)
		return append(out, s.Snapshot()...)
	}
	return out
}

// Snapshot returns the current state of every game.
func (s *Simulator) Snapshot() []events.GameUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.GameUpdate, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, clone(g.update))
	}
	return out
}

func (s *Simulator) advance(g *game, now time.Time) bool {
	u := &g.update
	switch u.Status {
	case "scheduled":
		if now.Before(u.StartTime) {
			return false
		}
		if g.postponed {
			u.Status = "postponed"
			return true
		}
		u.Status = "live"
		u.HomeScore, u.AwayScore = new(int), new(int)
		return true
	case "live":
		if !now.Before(u.StartTime.Add(s.cfg.Duration)) {
			s.finish(u)
			return true
		}
		if s.rnd.Intn(3) != 0 {
			return false
		}
		if s.rnd.Intn(2) == 0 {
			*u.HomeScore += score(s.rnd)
		} else {
			*u.AwayScore += score(s.rnd)
		}
		return true
	}
	return false
}

// finish closes a live game. Level scores go to overtime, so the feed never
// reports a tie.
func (s *Simulator) finish(u *events.GameUpdate) {
	for *u.HomeScore == *u.AwayScore {
		if s.rnd.Intn(2) == 0 {
			*u.HomeScore += score(s.rnd)
		} else {
			*u.AwayScore += score(s.rnd)
		}
	}
	u.Status = "completed"
	u.Winner = "away"
	if *u.HomeScore > *u.AwayScore {
		u.Winner = "home"
	}
}

func score(r *rand.Rand) int {
	switch r.Intn(4) {
	case 0:
		return 3
	case 1:
		return 6
	default:
		return 7
	}
}

// clone detaches the pointer fields so emitted updates never change.
func clone(u events.GameUpdate) events.GameUpdate {
	if u.HomeScore != nil {
		h := *u.HomeScore
		u.HomeScore = &h
	}
	if u.AwayScore != nil {
		a := *u.AwayScore
		u.AwayScore = &a
	}
	if u.BettingClosesAt != nil {
		c := *u.BettingClosesAt
		u.BettingClosesAt = &c
	}
	return u
}

func isFinal(status string) bool {
	return status == "completed" || status == "postponed" || status == "cancelled"
}

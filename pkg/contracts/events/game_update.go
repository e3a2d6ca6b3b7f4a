package events

import (
	"errors"
	"strings"
	"time"
)

// GameUpdate is published to "game_updates" by the feed ingest and consumed by
// the settlement worker. Winner and scores are only meaningful once completed.
type GameUpdate struct {
	GameID          string     `json:"game_id"`
	HomeTeam        string     `json:"home_team"`
	AwayTeam        string     `json:"away_team"`
	StartTime       time.Time  `json:"start_time"`
	BettingClosesAt *time.Time `json:"betting_closes_at,omitempty"`
	Status          string     `json:"status"` // scheduled | live | completed | cancelled | postponed
	Winner          string     `json:"winner,omitempty"`
	HomeScore       *int       `json:"home_score,omitempty"`
	AwayScore       *int       `json:"away_score,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Source          string     `json:"source"`
	Version         int        `json:"version"`
}

// Validate checks the fields the consumer relies on.
func (u GameUpdate) Validate() error {
	switch {
	case strings.TrimSpace(u.GameID) == "":
		return errors.New("game_id required")
	case u.HomeTeam == "" || u.AwayTeam == "":
		return errors.New("home_team and away_team required")
	case u.StartTime.IsZero():
		return errors.New("start_time required")
	}
	switch u.Status {
	case "scheduled", "live", "cancelled", "postponed":
	case "completed":
		if u.Winner != "home" && u.Winner != "away" && u.Winner != "tie" {
			return errors.New("completed update needs winner home, away or tie")
		}
	default:
		return errors.New("unknown status " + u.Status)
	}
	return nil
}

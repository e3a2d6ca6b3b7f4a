package events

import "time"

// Odds is a home/away decimal odds pair.
type Odds struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// OddsUpdate is broadcast over Redis pub/sub whenever a game's pools change.
type OddsUpdate struct {
	GameID       string    `json:"game_id"`
	Odds         Odds      `json:"odds"`
	HouseEdge    float64   `json:"house_edge"`
	HomeBetCount int64     `json:"home_bet_count"`
	AwayBetCount int64     `json:"away_bet_count"`
	HomeBiscuits int64     `json:"home_biscuits"`
	AwayBiscuits int64     `json:"away_biscuits"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int64     `json:"version"` // total bets on the game at publish time
}

package events

// BetPlaced is published to "bet_placed" after a placement commits.
type BetPlaced struct {
	BetID           string  `json:"bet_id"`
	UserID          string  `json:"user_id"`
	GameID          string  `json:"game_id"`
	PredictedWinner string  `json:"predicted_winner"` // "home" | "away"
	BetAmount       int64   `json:"bet_amount"`
	Odds            float64 `json:"odds"`
	PotentialWin    int64   `json:"potential_win"`
	NewBalance      int64   `json:"new_balance"`
	TsUnixMs        int64   `json:"ts_unix_ms"`
}

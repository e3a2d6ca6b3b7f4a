package events

import "time"

// BetSettled is published once per bet that leaves the pending state through
// settlement, refund or cancellation.
type BetSettled struct {
	BetID     string    `json:"bet_id"`
	UserID    string    `json:"user_id"`
	GameID    string    `json:"game_id"`
	Status    string    `json:"status"` // "won" | "lost" | "refunded" | "cancelled"
	BetAmount int64     `json:"bet_amount"`
	ActualWin int64     `json:"actual_win"`
	Ts        time.Time `json:"ts"`
}

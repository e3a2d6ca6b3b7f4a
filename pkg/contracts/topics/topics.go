package topics

const (
	// Games
	GameUpdates    = "game_updates"
	GameUpdatesDLQ = "game_updates_dlq"

	// Bets
	BetPlaced  = "bet_placed"
	BetSettled = "bet_settled"

	// Redis pub/sub
	OddsBroadcast = "odds_updates_broadcast"
)
